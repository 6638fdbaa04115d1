package broker

// BackendState is the latest-value snapshot published to the renderer
// after every command and every timer tick that observed a file-size
// change. Fields mirror FileView's own accessors one-to-one so the
// renderer never touches FileView directly.
type BackendState struct {
	FilePath     string
	RealFilePath string
	FileSize     uint64
	CurrentLine  *int64
	Offset       uint64
	Text         []string
	Follow       bool
	Marks        []string
	Errors       []error
}
