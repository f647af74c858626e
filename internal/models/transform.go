package models

type TransformRules struct {
	RenameColumns  map[string]string
	MapCategories  map[string]string
	ComputedFields map[string]string
}

type TransformPreviewResponse struct {
	Preview     []map[string]any `json:"preview"`
	TotalRows   int              `json:"total_rows"`
	PreviewRows int              `json:"preview_rows"`
	Columns     []string         `json:"columns"`
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
}

// File is an in-memory upload as the browser handed it over.
type File struct {
	Name string
	Data []byte
}

func (f *File) Size() int { return len(f.Data) }
