package music

// Album groups tracks. The pipeline only needs its name for output paths.
type Album struct {
	ID   string
	Name string
}
