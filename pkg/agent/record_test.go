package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/hybridqa/pkg/store"
)

func TestAgent_Confidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rows, frags, repaired bool
		want                  float64
	}{
		{false, false, false, 0.5},
		{true, false, false, 0.8},
		{true, true, false, 0.9},
		{false, true, false, 0.6},
		{false, false, true, 0.3},
		{true, true, true, 0.7},
		{false, true, true, 0.4},
	}
	for _, tt := range tests {
		got := Confidence(tt.rows, tt.frags, tt.repaired)
		require.Equal(t, tt.want, got)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
	}
}

func TestAgent_Citations(t *testing.T) {
	t.Parallel()

	frags := []Fragment{{ID: "kpi::chunk1"}, {ID: "kpi::chunk1"}}
	got := Citations(`SELECT SUM(od.Quantity) FROM orders o JOIN "Order Details" od ON od.OrderID = o.OrderID`, store.CanonicalTables, frags)
	require.Equal(t, []string{"Orders", "Order Details", "kpi::chunk1", "kpi::chunk1"}, got)

	got = Citations("", store.CanonicalTables, nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestAgent_RunStateRecord(t *testing.T) {
	t.Parallel()

	s := NewRunState(Request{ID: "q1", Question: "q"})
	require.Equal(t, ExpectedString, s.ExpectedType)
	require.Equal(t, StagePlanning, s.Stage)

	s.Citations = nil
	rec := s.Record()
	require.Equal(t, "q1", rec.ID)
	require.Equal(t, "", rec.SQL)
	require.Equal(t, 0.5, rec.Confidence)
	require.NotNil(t, rec.Citations)
}

func TestAgent_ParseFormatHint(t *testing.T) {
	t.Parallel()

	tests := map[string]ExpectedType{
		"int":                 ExpectedInt,
		" Float ":             ExpectedFloat,
		"str":                 ExpectedString,
		"string":              ExpectedString,
		"":                    ExpectedString,
		"list[{product:str}]": ExpectedStructured,
		"{category:str}":      ExpectedStructured,
		"dict":                ExpectedStructured,
		"something else":      ExpectedString,
	}
	for hint, want := range tests {
		require.Equal(t, want, ParseFormatHint(hint), hint)
	}
}
