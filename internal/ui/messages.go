package ui

// FileStartMsg indicates a worker has started on a file
type FileStartMsg struct {
	FileIndex int
}

// FileCompleteMsg indicates a file has finished. Summary is a one-line
// result shown next to the file name.
type FileCompleteMsg struct {
	FileIndex int
	Summary   string
	Error     error
}

// AllCompleteMsg indicates every dispatched file has finished
type AllCompleteMsg struct{}
