package a2a

/*
Artifact is a named output produced by a task.  Artifacts are append-only:
appending with an existing artifactId concatenates parts, anything else adds
a new artifact to the task.
*/
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Parts       []Part         `json:"parts"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewTextArtifact(id string, name string, text string) Artifact {
	return Artifact{
		ArtifactID: id,
		Name:       name,
		Parts:      []Part{NewTextPart(text)},
	}
}

func NewFileArtifact(id string, name string, mimeType string, data string) Artifact {
	return Artifact{
		ArtifactID: id,
		Name:       name,
		Parts: []Part{{
			Kind: PartKindFile,
			File: &FileContent{Name: name, MimeType: mimeType, Bytes: data},
		}},
	}
}

// Clone returns a deep-enough copy: part slices are duplicated so appends on
// the copy never reach the original.
func (artifact Artifact) Clone() Artifact {
	out := artifact
	out.Parts = make([]Part, len(artifact.Parts))
	copy(out.Parts, artifact.Parts)
	return out
}
