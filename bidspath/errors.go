package bidspath

import "fmt"

// InvalidEntityValueError indicates a key-value token with an empty or
// malformed value, e.g. "run-".
type InvalidEntityValueError struct {
	Token string
}

func (e *InvalidEntityValueError) Error() string {
	return fmt.Sprintf("invalid entity value in token %q", e.Token)
}

// InconsistentEntityError indicates a directory entity whose value differs
// from its filename counterpart, e.g. sub-01/anat/sub-02_T1w.nii.gz.
type InconsistentEntityError struct {
	Entity    string
	DirValue  string
	FileValue string
}

func (e *InconsistentEntityError) Error() string {
	return fmt.Sprintf("inconsistent entity %q: directory says %q, filename says %q",
		e.Entity, e.DirValue, e.FileValue)
}
