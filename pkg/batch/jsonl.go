// Package batch runs the agent over newline-delimited JSON request files.
package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/malbeclabs/hybridqa/pkg/agent"
)

const maxLineBytes = 1 << 20

// Input is one line of a batch file.
type Input struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
}

func (in Input) Request() agent.Request {
	return agent.Request{
		ID:           in.ID,
		Question:     in.Question,
		ExpectedType: agent.ParseFormatHint(in.FormatHint),
		FormatHint:   in.FormatHint,
	}
}

// ReadInputs parses one Input per non-blank line. Any malformed line fails the whole read.
func ReadInputs(r io.Reader) ([]Input, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []Input
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var in Input
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if in.ID == "" {
			return nil, fmt.Errorf("line %d: missing id", line)
		}
		out = append(out, in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inputs: %w", err)
	}
	return out, nil
}

// WriteRecords writes one JSON record per line.
func WriteRecords(w io.Writer, records []agent.Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
	}
	return bw.Flush()
}
