package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type identifies a message segment variant. It matches the `type` tag used
// on the wire.
type Type string

const (
	TypeSource     Type = "Source"
	TypeQuote      Type = "Quote"
	TypeAt         Type = "At"
	TypeAtAll      Type = "AtAll"
	TypeFace       Type = "Face"
	TypePlain      Type = "Plain"
	TypeImage      Type = "Image"
	TypeVoice      Type = "Voice"
	TypeFlashImage Type = "FlashImage"
	TypeXml        Type = "Xml"
	TypeJson       Type = "Json"
	TypeApp        Type = "App"
	TypePoke       Type = "Poke"
)

func (t Type) String() string { return string(t) }

// ErrInvalidSegment is the kind wrapped by every segment validation failure.
var ErrInvalidSegment = errors.New("invalid message segment")

// Segment is one typed component of a message chain. A Segment entering a
// chain must pass its variant's Validate check first; chains never hold an
// invalid segment.
type Segment interface {
	SegmentType() Type
	// Validate reports whether the segment satisfies its variant's required
	// fields. Quote validates its origin chain recursively.
	Validate() error
	// String renders the segment as its canonical one-way textual token.
	// Plain renders as raw text, Source renders as nothing.
	String() string
}

// Source is the system-injected first element of inbound chains, carrying the
// message id and unix timestamp. Applications never construct one for outbound
// messages.
type Source struct {
	Kind Type  `json:"type"`
	ID   int64 `json:"id"`
	Time int64 `json:"time"`
}

func NewSource(id, time int64) *Source {
	return &Source{Kind: TypeSource, ID: id, Time: time}
}

func (s *Source) SegmentType() Type { return TypeSource }

func (s *Source) Validate() error {
	if s.Kind != TypeSource {
		return fmt.Errorf("%w: source has type tag %q", ErrInvalidSegment, s.Kind)
	}
	if s.ID == 0 {
		return fmt.Errorf("%w: source requires a message id", ErrInvalidSegment)
	}
	if s.Time == 0 {
		return fmt.Errorf("%w: source requires a timestamp", ErrInvalidSegment)
	}
	return nil
}

func (s *Source) String() string { return "" }

// Quote references a previously sent message. When sending, do not place a
// Quote in the chain; use the quote parameter of the send operation instead.
type Quote struct {
	Kind     Type      `json:"type"`
	ID       int64     `json:"id"`
	SenderID int64     `json:"senderId"`
	GroupID  int64     `json:"groupId"` // 0 means the quoted message was private
	TargetID int64     `json:"targetId"`
	Origin   []Segment `json:"origin"`
}

// NewQuote builds a quote of message id sent by sender in group (0 for a
// private chat). TargetID mirrors the sender, matching the wire convention.
func NewQuote(id int64, origin []Segment, sender, group int64) *Quote {
	return &Quote{
		Kind:     TypeQuote,
		ID:       id,
		SenderID: sender,
		GroupID:  group,
		TargetID: sender,
		Origin:   origin,
	}
}

func (q *Quote) SegmentType() Type { return TypeQuote }

func (q *Quote) Validate() error {
	if q.Kind != TypeQuote {
		return fmt.Errorf("%w: quote has type tag %q", ErrInvalidSegment, q.Kind)
	}
	if q.ID == 0 {
		return fmt.Errorf("%w: quote requires a message id", ErrInvalidSegment)
	}
	if q.SenderID == 0 {
		return fmt.Errorf("%w: quote requires a sender id", ErrInvalidSegment)
	}
	for i, seg := range q.Origin {
		if seg == nil {
			return fmt.Errorf("%w: quote origin element %d is nil", ErrInvalidSegment, i)
		}
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("quote origin element %d: %w", i, err)
		}
	}
	return nil
}

func (q *Quote) String() string {
	return fmt.Sprintf("[mirai:quote:%d:%d]", q.ID, q.SenderID)
}

// UnmarshalJSON decodes the recursive origin chain through the segment
// decoder so nested variants come back typed.
func (q *Quote) UnmarshalJSON(data []byte) error {
	var wire struct {
		Kind     Type        `json:"type"`
		ID       int64       `json:"id"`
		SenderID int64       `json:"senderId"`
		GroupID  int64       `json:"groupId"`
		TargetID int64       `json:"targetId"`
		Origin   []rawHolder `json:"origin"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	q.Kind = wire.Kind
	q.ID = wire.ID
	q.SenderID = wire.SenderID
	q.GroupID = wire.GroupID
	q.TargetID = wire.TargetID
	q.Origin = q.Origin[:0]
	for i, raw := range wire.Origin {
		seg, err := DecodeSegment(raw.data)
		if err != nil {
			return fmt.Errorf("quote origin element %d: %w", i, err)
		}
		q.Origin = append(q.Origin, seg)
	}
	return nil
}

// At mentions one group member.
type At struct {
	Kind    Type   `json:"type"`
	Target  int64  `json:"target"`
	Display string `json:"display,omitempty"`
}

func NewAt(target int64) *At {
	return &At{Kind: TypeAt, Target: target}
}

func (a *At) SegmentType() Type { return TypeAt }

func (a *At) Validate() error {
	if a.Kind != TypeAt {
		return fmt.Errorf("%w: at has type tag %q", ErrInvalidSegment, a.Kind)
	}
	if a.Target == 0 {
		return fmt.Errorf("%w: at requires a target", ErrInvalidSegment)
	}
	return nil
}

func (a *At) String() string { return fmt.Sprintf("[mirai:at:%d]", a.Target) }

// AtAll mentions every member of the group.
type AtAll struct {
	Kind Type `json:"type"`
}

func NewAtAll() *AtAll { return &AtAll{Kind: TypeAtAll} }

func (a *AtAll) SegmentType() Type { return TypeAtAll }

func (a *AtAll) Validate() error {
	if a.Kind != TypeAtAll {
		return fmt.Errorf("%w: atall has type tag %q", ErrInvalidSegment, a.Kind)
	}
	return nil
}

func (a *AtAll) String() string { return "[mirai:atall]" }

// Face is a built-in emoticon, addressed by numeric id or by name. At least
// one of the two must be set.
type Face struct {
	Kind   Type   `json:"type"`
	FaceID int64  `json:"faceId,omitempty"`
	Name   string `json:"name,omitempty"`
}

func NewFace(id int64, name string) *Face {
	return &Face{Kind: TypeFace, FaceID: id, Name: name}
}

func (f *Face) SegmentType() Type { return TypeFace }

func (f *Face) Validate() error {
	if f.Kind != TypeFace {
		return fmt.Errorf("%w: face has type tag %q", ErrInvalidSegment, f.Kind)
	}
	if f.FaceID == 0 && f.Name == "" {
		return fmt.Errorf("%w: face requires an id or a name", ErrInvalidSegment)
	}
	return nil
}

func (f *Face) String() string {
	if f.FaceID != 0 {
		return fmt.Sprintf("[mirai:face:%d]", f.FaceID)
	}
	return fmt.Sprintf("[mirai:face:%s]", f.Name)
}

// Plain is raw text. Bare strings handed to chain constructors are wrapped
// into Plain automatically.
type Plain struct {
	Kind Type   `json:"type"`
	Text string `json:"text"`
}

func NewPlain(text string) *Plain {
	return &Plain{Kind: TypePlain, Text: text}
}

func (p *Plain) SegmentType() Type { return TypePlain }

func (p *Plain) Validate() error {
	if p.Kind != TypePlain {
		return fmt.Errorf("%w: plain has type tag %q", ErrInvalidSegment, p.Kind)
	}
	return nil
}

func (p *Plain) String() string { return p.Text }

// Image references a picture by uploaded id, remote URL, or server-local
// path. At least one must be non-empty.
type Image struct {
	Kind    Type   `json:"type"`
	ImageID string `json:"imageId,omitempty"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
}

func NewImage(imageID, url, path string) *Image {
	return &Image{Kind: TypeImage, ImageID: imageID, URL: url, Path: path}
}

func (i *Image) SegmentType() Type { return TypeImage }

func (i *Image) Validate() error {
	if i.Kind != TypeImage {
		return fmt.Errorf("%w: image has type tag %q", ErrInvalidSegment, i.Kind)
	}
	if i.ImageID == "" && i.URL == "" && i.Path == "" {
		return fmt.Errorf("%w: image requires an id, url or path", ErrInvalidSegment)
	}
	return nil
}

func (i *Image) String() string {
	return fmt.Sprintf("[mirai:image:%s]", mediaToken(i.ImageID, i.URL, i.Path))
}

// FlashImage is an image shown once and then hidden. Same field rules as
// Image, rendered distinctly.
type FlashImage struct {
	Kind    Type   `json:"type"`
	ImageID string `json:"imageId,omitempty"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
}

func NewFlashImage(imageID, url, path string) *FlashImage {
	return &FlashImage{Kind: TypeFlashImage, ImageID: imageID, URL: url, Path: path}
}

func (f *FlashImage) SegmentType() Type { return TypeFlashImage }

func (f *FlashImage) Validate() error {
	if f.Kind != TypeFlashImage {
		return fmt.Errorf("%w: flash image has type tag %q", ErrInvalidSegment, f.Kind)
	}
	if f.ImageID == "" && f.URL == "" && f.Path == "" {
		return fmt.Errorf("%w: flash image requires an id, url or path", ErrInvalidSegment)
	}
	return nil
}

func (f *FlashImage) String() string {
	return fmt.Sprintf("[mirai:flashimage:%s]", mediaToken(f.ImageID, f.URL, f.Path))
}

// Voice references an audio clip by uploaded id, URL, or server-local path.
type Voice struct {
	Kind    Type   `json:"type"`
	VoiceID string `json:"voiceId,omitempty"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
}

func NewVoice(voiceID, url, path string) *Voice {
	return &Voice{Kind: TypeVoice, VoiceID: voiceID, URL: url, Path: path}
}

func (v *Voice) SegmentType() Type { return TypeVoice }

func (v *Voice) Validate() error {
	if v.Kind != TypeVoice {
		return fmt.Errorf("%w: voice has type tag %q", ErrInvalidSegment, v.Kind)
	}
	if v.VoiceID == "" && v.URL == "" && v.Path == "" {
		return fmt.Errorf("%w: voice requires an id, url or path", ErrInvalidSegment)
	}
	return nil
}

func (v *Voice) String() string {
	return fmt.Sprintf("[mirai:voice:%s]", mediaToken(v.VoiceID, v.URL, v.Path))
}

// Xml is an XML card message.
type Xml struct {
	Kind Type   `json:"type"`
	XML  string `json:"xml"`
}

func NewXml(xml string) *Xml { return &Xml{Kind: TypeXml, XML: xml} }

func (x *Xml) SegmentType() Type { return TypeXml }

func (x *Xml) Validate() error {
	if x.Kind != TypeXml {
		return fmt.Errorf("%w: xml has type tag %q", ErrInvalidSegment, x.Kind)
	}
	return nil
}

func (x *Xml) String() string { return fmt.Sprintf("[mirai:xml:%s]", x.XML) }

// Json is a JSON card message.
type Json struct {
	Kind Type   `json:"type"`
	JSON string `json:"json"`
}

func NewJson(content string) *Json { return &Json{Kind: TypeJson, JSON: content} }

func (j *Json) SegmentType() Type { return TypeJson }

func (j *Json) Validate() error {
	if j.Kind != TypeJson {
		return fmt.Errorf("%w: json has type tag %q", ErrInvalidSegment, j.Kind)
	}
	return nil
}

func (j *Json) String() string { return fmt.Sprintf("[mirai:json:%s]", j.JSON) }

// App is an app-share card message.
type App struct {
	Kind    Type   `json:"type"`
	Content string `json:"content"`
}

func NewApp(content string) *App { return &App{Kind: TypeApp, Content: content} }

func (a *App) SegmentType() Type { return TypeApp }

func (a *App) Validate() error {
	if a.Kind != TypeApp {
		return fmt.Errorf("%w: app has type tag %q", ErrInvalidSegment, a.Kind)
	}
	return nil
}

func (a *App) String() string { return fmt.Sprintf("[mirai:app:%s]", a.Content) }

// PokeName is one of the closed set of poke animations.
type PokeName string

const (
	PokePoke        PokeName = "Poke"
	PokeShowLove    PokeName = "ShowLove"
	PokeLike        PokeName = "Like"
	PokeHeartbroken PokeName = "Heartbroken"
	PokeSixSixSix   PokeName = "SixSixSix"
	PokeFangDaZhao  PokeName = "FangDaZhao"
)

var allowedPokes = map[PokeName]bool{
	PokePoke:        true,
	PokeShowLove:    true,
	PokeLike:        true,
	PokeHeartbroken: true,
	PokeSixSixSix:   true,
	PokeFangDaZhao:  true,
}

// Poke sends a poke animation. Only the closed set of names is valid.
type Poke struct {
	Kind Type     `json:"type"`
	Name PokeName `json:"name"`
}

func NewPoke(name PokeName) *Poke { return &Poke{Kind: TypePoke, Name: name} }

func (p *Poke) SegmentType() Type { return TypePoke }

func (p *Poke) Validate() error {
	if p.Kind != TypePoke {
		return fmt.Errorf("%w: poke has type tag %q", ErrInvalidSegment, p.Kind)
	}
	if !allowedPokes[p.Name] {
		return fmt.Errorf("%w: unknown poke name %q", ErrInvalidSegment, p.Name)
	}
	return nil
}

func (p *Poke) String() string { return fmt.Sprintf("[mirai:poke:%s]", p.Name) }

// mediaToken picks the strongest available reference for rendering: id wins,
// then url, then path.
func mediaToken(id, url, path string) string {
	switch {
	case id != "":
		return id
	case url != "":
		return "url:" + url
	default:
		return "path:" + path
	}
}
