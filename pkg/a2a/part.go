package a2a

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

/*
Part is a discriminated union over text, file and data parts.  The "kind"
field is the discriminator and is always decoded before the payload, so a
malformed payload for one variant can never be silently misread as another.
*/
type Part struct {
	Kind PartKind `json:"kind"`

	// Exactly one of the following is populated depending on Kind.
	Text string         `json:"text,omitempty"`
	File *FileContent   `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartKind is the discriminator for a Part union.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

/*
FileContent carries a file either inline as base64 bytes or by reference as
a URI.  Exactly one of Bytes and URI may be set.
*/
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

func (fc *FileContent) Validate() error {
	if fc.Bytes != "" && fc.URI != "" {
		return fmt.Errorf("file part must not set both bytes and uri")
	}
	if fc.Bytes == "" && fc.URI == "" {
		return fmt.Errorf("file part must set one of bytes or uri")
	}
	return nil
}

func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

func NewFilePart(name string, mimeType string, data []byte) Part {
	return Part{
		Kind: PartKindFile,
		File: &FileContent{
			Name:     name,
			MimeType: mimeType,
			Bytes:    base64.StdEncoding.EncodeToString(data),
		},
	}
}

func NewFileURIPart(name string, mimeType string, uri string) Part {
	return Part{
		Kind: PartKindFile,
		File: &FileContent{Name: name, MimeType: mimeType, URI: uri},
	}
}

func NewDataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

/*
UnmarshalJSON decodes the discriminator first and then only the fields that
belong to the discriminated variant.
*/
func (part *Part) UnmarshalJSON(buf []byte) error {
	var probe struct {
		Kind     PartKind       `json:"kind"`
		Metadata map[string]any `json:"metadata"`
	}

	if err := json.Unmarshal(buf, &probe); err != nil {
		return err
	}

	part.Kind = probe.Kind
	part.Metadata = probe.Metadata

	switch probe.Kind {
	case PartKindText:
		var v struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(buf, &v); err != nil {
			return err
		}
		part.Text = v.Text
	case PartKindFile:
		var v struct {
			File *FileContent `json:"file"`
		}
		if err := json.Unmarshal(buf, &v); err != nil {
			return err
		}
		if v.File == nil {
			return fmt.Errorf("file part missing file payload")
		}
		part.File = v.File
	case PartKindData:
		var v struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(buf, &v); err != nil {
			return err
		}
		part.Data = v.Data
	default:
		return fmt.Errorf("unknown part kind %q", probe.Kind)
	}

	return nil
}

/*
MarshalJSON emits only the active variant, so a part constructed from a
struct literal with stray fields still encodes canonically.
*/
func (part Part) MarshalJSON() ([]byte, error) {
	out := map[string]any{"kind": part.Kind}

	switch part.Kind {
	case PartKindText:
		out["text"] = part.Text
	case PartKindFile:
		out["file"] = part.File
	case PartKindData:
		out["data"] = part.Data
	default:
		return nil, fmt.Errorf("unknown part kind %q", part.Kind)
	}

	if len(part.Metadata) > 0 {
		out["metadata"] = part.Metadata
	}

	return json.Marshal(out)
}

func (part *Part) Validate() error {
	switch part.Kind {
	case PartKindText:
		if part.Text == "" {
			return fmt.Errorf("text part must not be empty")
		}
	case PartKindFile:
		if part.File == nil {
			return fmt.Errorf("file part missing file payload")
		}
		return part.File.Validate()
	case PartKindData:
		if len(part.Data) == 0 {
			return fmt.Errorf("data part must not be empty")
		}
	default:
		return fmt.Errorf("unknown part kind %q", part.Kind)
	}
	return nil
}
