//go:build embed_model

package provider

import "embed"

// Building with -tags embed_model compiles the model files under models/
// into the binary, so a hibikido deployment needs no model download step.
// The model is extracted to the cache directory on first use.
//
//go:embed all:models
var embeddedModelFS embed.FS

const hasEmbeddedModel = true
