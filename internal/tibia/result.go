package tibia

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/udisondev/tibiago/internal/protocol"
	"github.com/udisondev/tibiago/internal/session"
)

// Source names the buffer a field's byte range refers to.
type Source int

const (
	SourceFrame      Source = iota // the message as captured
	SourceLoginBlock               // decrypted RSA login block
	SourceGameData                 // XTEA-decrypted game payload
)

func (s Source) String() string {
	switch s {
	case SourceFrame:
		return "Frame"
	case SourceLoginBlock:
		return "Decrypted Login Data"
	case SourceGameData:
		return "Decrypted Game Data"
	default:
		return "unknown"
	}
}

// Field is one decoded item. Offset and Length locate it in its Source;
// generated fields carry state remembered from earlier messages and cover
// no bytes.
type Field struct {
	Name      string
	Source    Source
	Offset    int
	Length    int
	Value     any
	Depth     int
	Generated bool
}

func (f Field) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", f.Depth))
	sb.WriteString(f.Name)
	if f.Value != nil {
		fmt.Fprintf(&sb, ": %v", f.Value)
	}
	if f.Generated {
		sb.WriteString(" [generated]")
	}
	return sb.String()
}

// Annotation is a diagnostic attached to a message.
type Annotation struct {
	Err    error
	Reason string
	Source Source
	Offset int
}

func (a Annotation) String() string {
	return a.Reason
}

// Result is the dissection of one message: fields in byte order plus
// diagnostics and any decrypted buffers the fields point into.
type Result struct {
	Frame       uint32
	Flow        session.FlowID
	Src         netip.AddrPort
	Dst         netip.AddrPort
	Phase       protocol.Phase
	Info        string
	Fields      []Field
	Annotations []Annotation
	Buffers     map[Source][]byte

	depth int
}

func newResult(msg Message) *Result {
	return &Result{
		Frame:   msg.Frame,
		Flow:    session.NewFlowID(msg.Src, msg.Dst),
		Src:     msg.Src,
		Dst:     msg.Dst,
		Buffers: map[Source][]byte{SourceFrame: msg.Data},
	}
}

func (r *Result) add(name string, src Source, off, length int, value any) {
	r.Fields = append(r.Fields, Field{
		Name:   name,
		Source: src,
		Offset: off,
		Length: length,
		Value:  value,
		Depth:  r.depth,
	})
}

func (r *Result) generated(name string, value any) {
	r.Fields = append(r.Fields, Field{
		Name:      name,
		Value:     value,
		Depth:     r.depth,
		Generated: true,
	})
}

func (r *Result) push() { r.depth++ }

func (r *Result) pop() {
	if r.depth > 0 {
		r.depth--
	}
}

func (r *Result) annotate(err error, src Source, off int, format string, args ...any) {
	r.Annotations = append(r.Annotations, Annotation{
		Err:    err,
		Reason: fmt.Sprintf(format, args...),
		Source: src,
		Offset: off,
	})
}

// Field returns the first field with the given name.
func (r *Result) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldsNamed returns every field with the given name, in order.
func (r *Result) FieldsNamed(name string) []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// Bytes returns the bytes a field covers.
func (r *Result) Bytes(f Field) []byte {
	buf := r.Buffers[f.Source]
	if f.Generated || f.Offset < 0 || f.Offset+f.Length > len(buf) {
		return nil
	}
	return buf[f.Offset : f.Offset+f.Length]
}

// HasError reports whether any annotation matches target.
func (r *Result) HasError(target error) bool {
	for _, a := range r.Annotations {
		if errors.Is(a.Err, target) {
			return true
		}
	}
	return false
}
