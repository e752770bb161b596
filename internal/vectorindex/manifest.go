package vectorindex

// Backends.
const (
	BackendFlat    = "flat"
	BackendChromem = "chromem"
)

const (
	manifestFile = "manifest.json"
	vectorFile   = "index.bin"
	metadataFile = "metadata.json"

	indexVersion = 1
)

// Manifest describes a persisted index.
type Manifest struct {
	IndexVersion int    `json:"index_version"`
	CreatedAt    string `json:"created_at"`
	ModelID      string `json:"model_id"`
	Dim          int    `json:"dim"`
	Rows         int    `json:"rows"`
	Backend      string `json:"backend"`
}

// Options selects the model and backend an index is built for.
type Options struct {
	ModelID string
	Backend string
}

func (o Options) backend() string {
	if o.Backend == "" {
		return BackendFlat
	}
	return o.Backend
}
