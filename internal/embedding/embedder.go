package embedding

import "context"

// Embedder defines the interface contract for embedding generation services.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
	ModelName() string
}

// Dimensions is the fixed dimensionality of stored vectors; the expenses
// table declares its vector column with the same size.
const Dimensions = 1536
