package repository

import (
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

// pgx's default type map has no codec for the vector type, so any read of the
// embedding column must come back cast to real[]. A bare "embedding" in the
// select list would make every row with a stored vector fail to scan.
func TestExpenseColumnsReadEmbeddingAsArray(t *testing.T) {
	if !strings.Contains(expenseColumns, "embedding::real[] AS embedding") {
		t.Fatalf("expenseColumns does not cast embedding to real[]: %q", expenseColumns)
	}
	if strings.Contains(expenseColumns, ", embedding,") {
		t.Errorf("expenseColumns selects the raw vector column: %q", expenseColumns)
	}
}

func TestVectorParam(t *testing.T) {
	if got := vectorParam(nil); got != nil {
		t.Errorf("vectorParam(nil) = %v, want nil for a NULL column value", got)
	}

	embedding := []float32{0.1, -0.5, 1}
	got, ok := vectorParam(embedding).(pgtype.FlatArray[float32])
	if !ok {
		t.Fatalf("vectorParam returned %T, want pgtype.FlatArray[float32]", vectorParam(embedding))
	}
	if len(got) != len(embedding) {
		t.Fatalf("len = %d, want %d", len(got), len(embedding))
	}
	for i, v := range embedding {
		if got[i] != v {
			t.Errorf("element %d = %v, want %v", i, got[i], v)
		}
	}
}
