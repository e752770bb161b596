// Package embeddings turns catalog descriptions and search text into vectors.
//
// Providers: local ONNX models through fastembed (cgo builds only), a Text
// Embeddings Inference server, or any OpenAI-compatible embeddings endpoint
// through langchaingo. NewProvider wraps the selected provider so that
// transport failures are retried once.
package embeddings
