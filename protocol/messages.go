package protocol

import (
	"fmt"
	"math"
)

// Message type tags. Client → daemon tags occupy the low range; daemon →
// client tags occupy 0x80 and above, matching the split hauntty's wire
// protocol already uses.
const (
	TypeResize         uint8 = 0x01
	TypeInput          uint8 = 0x02
	TypePing           uint8 = 0x03
	TypeDisconnect     uint8 = 0x04
	TypeLoadPlugin     uint8 = 0x05
	TypeSessionCreate  uint8 = 0x06
	TypeSessionDelete  uint8 = 0x07
	TypeSessionList    uint8 = 0x08
	TypeSessionAttach  uint8 = 0x09
	TypeSessionDetach  uint8 = 0x0A
	TypeSessionRename  uint8 = 0x0B
	TypePluginList     uint8 = 0x0C
	TypePluginEnable   uint8 = 0x0D
	TypePluginDisable  uint8 = 0x0E
	TypePluginReload   uint8 = 0x0F
	TypeCommandSelect  uint8 = 0x10

	TypeDaemonSession           uint8 = 0x80
	TypeDrawOverlay             uint8 = 0x81
	TypeClearOverlays           uint8 = 0x82
	TypeShowModal               uint8 = 0x83
	TypeHideModal               uint8 = 0x84
	TypeDaemonPluginList        uint8 = 0x85
	TypePluginStatusChanged     uint8 = 0x86
	TypePluginError             uint8 = 0x87
	TypePluginLog               uint8 = 0x88
	TypePluginNotification      uint8 = 0x89
)

// LogLevel mirrors the original's plugin log severities.
type LogLevel uint8

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
)

// NotifyLevel mirrors the original's notification severities.
type NotifyLevel uint8

const (
	NotifyError NotifyLevel = iota
	NotifyWarning
	NotifyInfo
	NotifySuccess
)

// Message is any frame payload that can round-trip through Encode/Decode.
// Every implementation must satisfy property 2 in spec.md §8:
// decode(encode(m)) == m.
type Message interface {
	Type() uint8
	encode(*Encoder) error
	decode(*Decoder) error
}

// --- client -> daemon -------------------------------------------------

type Resize struct{ Cols, Rows uint16 }

func (m *Resize) Type() uint8 { return TypeResize }
func (m *Resize) encode(e *Encoder) error {
	if err := e.WriteU16(m.Cols); err != nil {
		return err
	}
	return e.WriteU16(m.Rows)
}
func (m *Resize) decode(d *Decoder) (err error) {
	if m.Cols, err = d.ReadU16(); err != nil {
		return err
	}
	m.Rows, err = d.ReadU16()
	return err
}

type Input struct{ Data []byte }

func (m *Input) Type() uint8               { return TypeInput }
func (m *Input) encode(e *Encoder) error    { return e.WriteBytes(m.Data) }
func (m *Input) decode(d *Decoder) (err error) {
	m.Data, err = d.ReadBytes()
	return err
}

type Ping struct{ Timestamp uint64 }

func (m *Ping) Type() uint8            { return TypePing }
func (m *Ping) encode(e *Encoder) error { return e.WriteU64(m.Timestamp) }
func (m *Ping) decode(d *Decoder) (err error) {
	m.Timestamp, err = d.ReadU64()
	return err
}

type Disconnect struct{ ClientID uint64 }

func (m *Disconnect) Type() uint8            { return TypeDisconnect }
func (m *Disconnect) encode(e *Encoder) error { return e.WriteU64(m.ClientID) }
func (m *Disconnect) decode(d *Decoder) (err error) {
	m.ClientID, err = d.ReadU64()
	return err
}

type LoadPlugin struct{ Path string }

func (m *LoadPlugin) Type() uint8            { return TypeLoadPlugin }
func (m *LoadPlugin) encode(e *Encoder) error { return e.WriteString(m.Path) }
func (m *LoadPlugin) decode(d *Decoder) (err error) {
	m.Path, err = d.ReadString()
	return err
}

type SessionCreate struct{ Name string }

func (m *SessionCreate) Type() uint8            { return TypeSessionCreate }
func (m *SessionCreate) encode(e *Encoder) error { return e.WriteString(m.Name) }
func (m *SessionCreate) decode(d *Decoder) (err error) {
	m.Name, err = d.ReadString()
	return err
}

type SessionDelete struct{ ID string }

func (m *SessionDelete) Type() uint8            { return TypeSessionDelete }
func (m *SessionDelete) encode(e *Encoder) error { return e.WriteString(m.ID) }
func (m *SessionDelete) decode(d *Decoder) (err error) {
	m.ID, err = d.ReadString()
	return err
}

type SessionList struct{}

func (m *SessionList) Type() uint8              { return TypeSessionList }
func (m *SessionList) encode(e *Encoder) error  { return nil }
func (m *SessionList) decode(d *Decoder) error  { return nil }

type SessionAttach struct{ ID string }

func (m *SessionAttach) Type() uint8            { return TypeSessionAttach }
func (m *SessionAttach) encode(e *Encoder) error { return e.WriteString(m.ID) }
func (m *SessionAttach) decode(d *Decoder) (err error) {
	m.ID, err = d.ReadString()
	return err
}

type SessionDetach struct{ ID string }

func (m *SessionDetach) Type() uint8            { return TypeSessionDetach }
func (m *SessionDetach) encode(e *Encoder) error { return e.WriteString(m.ID) }
func (m *SessionDetach) decode(d *Decoder) (err error) {
	m.ID, err = d.ReadString()
	return err
}

type SessionRename struct{ ID, NewName string }

func (m *SessionRename) Type() uint8 { return TypeSessionRename }
func (m *SessionRename) encode(e *Encoder) error {
	if err := e.WriteString(m.ID); err != nil {
		return err
	}
	return e.WriteString(m.NewName)
}
func (m *SessionRename) decode(d *Decoder) (err error) {
	if m.ID, err = d.ReadString(); err != nil {
		return err
	}
	m.NewName, err = d.ReadString()
	return err
}

type PluginListRequest struct{}

func (m *PluginListRequest) Type() uint8             { return TypePluginList }
func (m *PluginListRequest) encode(e *Encoder) error { return nil }
func (m *PluginListRequest) decode(d *Decoder) error { return nil }

type PluginEnable struct{ Name string }

func (m *PluginEnable) Type() uint8            { return TypePluginEnable }
func (m *PluginEnable) encode(e *Encoder) error { return e.WriteString(m.Name) }
func (m *PluginEnable) decode(d *Decoder) (err error) {
	m.Name, err = d.ReadString()
	return err
}

type PluginDisable struct{ Name string }

func (m *PluginDisable) Type() uint8            { return TypePluginDisable }
func (m *PluginDisable) encode(e *Encoder) error { return e.WriteString(m.Name) }
func (m *PluginDisable) decode(d *Decoder) (err error) {
	m.Name, err = d.ReadString()
	return err
}

type PluginReload struct{ Name string }

func (m *PluginReload) Type() uint8            { return TypePluginReload }
func (m *PluginReload) encode(e *Encoder) error { return e.WriteString(m.Name) }
func (m *PluginReload) decode(d *Decoder) (err error) {
	m.Name, err = d.ReadString()
	return err
}

type CommandSelected struct{ ID string }

func (m *CommandSelected) Type() uint8            { return TypeCommandSelect }
func (m *CommandSelected) encode(e *Encoder) error { return e.WriteString(m.ID) }
func (m *CommandSelected) decode(d *Decoder) (err error) {
	m.ID, err = d.ReadString()
	return err
}

// --- daemon -> client --------------------------------------------------

// SessionInfo describes one session for SessionResponseList.
type SessionInfo struct {
	ID              string
	Name            string
	CreatedAt       uint64
	LastAttached    uint64
	AttachedClients uint32
}

func (s *SessionInfo) encode(e *Encoder) error {
	if err := e.WriteString(s.ID); err != nil {
		return err
	}
	if err := e.WriteString(s.Name); err != nil {
		return err
	}
	if err := e.WriteU64(s.CreatedAt); err != nil {
		return err
	}
	if err := e.WriteU64(s.LastAttached); err != nil {
		return err
	}
	return e.WriteU32(s.AttachedClients)
}

func (s *SessionInfo) decode(d *Decoder) (err error) {
	if s.ID, err = d.ReadString(); err != nil {
		return err
	}
	if s.Name, err = d.ReadString(); err != nil {
		return err
	}
	if s.CreatedAt, err = d.ReadU64(); err != nil {
		return err
	}
	if s.LastAttached, err = d.ReadU64(); err != nil {
		return err
	}
	s.AttachedClients, err = d.ReadU32()
	return err
}

// SessionResponse kinds, tagged by a leading byte inside the
// DaemonSession frame.
const (
	SessionRespCreated uint8 = iota
	SessionRespDeleted
	SessionRespList
	SessionRespAttached
	SessionRespDetached
	SessionRespRenamed
	SessionRespError
)

// DaemonSession wraps a SessionResponse, the daemon's reply to any of the
// client's session-management commands.
type DaemonSession struct {
	Kind      uint8
	ID        string
	Name      string
	NewName   string
	Sessions  []SessionInfo
	Message   string
}

func (m *DaemonSession) Type() uint8 { return TypeDaemonSession }

func (m *DaemonSession) encode(e *Encoder) error {
	if err := e.WriteU8(m.Kind); err != nil {
		return err
	}
	switch m.Kind {
	case SessionRespCreated, SessionRespAttached, SessionRespDetached:
		if err := e.WriteString(m.ID); err != nil {
			return err
		}
		return e.WriteString(m.Name)
	case SessionRespDeleted:
		return e.WriteString(m.ID)
	case SessionRespList:
		if err := e.WriteU16(uint16(len(m.Sessions))); err != nil {
			return err
		}
		for i := range m.Sessions {
			if err := m.Sessions[i].encode(e); err != nil {
				return err
			}
		}
		return nil
	case SessionRespRenamed:
		if err := e.WriteString(m.ID); err != nil {
			return err
		}
		return e.WriteString(m.NewName)
	case SessionRespError:
		return e.WriteString(m.Message)
	default:
		return fmt.Errorf("protocol: unknown SessionResponse kind %d", m.Kind)
	}
}

func (m *DaemonSession) decode(d *Decoder) error {
	kind, err := d.ReadU8()
	if err != nil {
		return err
	}
	m.Kind = kind
	switch kind {
	case SessionRespCreated, SessionRespAttached, SessionRespDetached:
		if m.ID, err = d.ReadString(); err != nil {
			return err
		}
		m.Name, err = d.ReadString()
		return err
	case SessionRespDeleted:
		m.ID, err = d.ReadString()
		return err
	case SessionRespList:
		n, err := d.ReadU16()
		if err != nil {
			return err
		}
		m.Sessions = make([]SessionInfo, n)
		for i := range m.Sessions {
			if err := m.Sessions[i].decode(d); err != nil {
				return err
			}
		}
		return nil
	case SessionRespRenamed:
		if m.ID, err = d.ReadString(); err != nil {
			return err
		}
		m.NewName, err = d.ReadString()
		return err
	case SessionRespError:
		m.Message, err = d.ReadString()
		return err
	default:
		return fmt.Errorf("protocol: unknown SessionResponse kind %d", kind)
	}
}

// OverlayStyle carries the color/z-index hints for a rendered overlay.
type OverlayStyle struct {
	Fg, Bg uint32
	ZIndex float32
}

// DefaultOverlayStyle matches the original's Default impl: white on red,
// high z-index for visibility.
var DefaultOverlayStyle = OverlayStyle{Fg: 0xFFFFFFFF, Bg: 0xFF0000FF, ZIndex: 100}

type DrawOverlay struct {
	ID    uint64
	X, Y  uint16
	Text  string
	Style OverlayStyle
}

func (m *DrawOverlay) Type() uint8 { return TypeDrawOverlay }
func (m *DrawOverlay) encode(e *Encoder) error {
	if err := e.WriteU64(m.ID); err != nil {
		return err
	}
	if err := e.WriteU16(m.X); err != nil {
		return err
	}
	if err := e.WriteU16(m.Y); err != nil {
		return err
	}
	if err := e.WriteString(m.Text); err != nil {
		return err
	}
	if err := e.WriteU32(m.Style.Fg); err != nil {
		return err
	}
	if err := e.WriteU32(m.Style.Bg); err != nil {
		return err
	}
	return e.WriteU32(math.Float32bits(m.Style.ZIndex))
}

func (m *DrawOverlay) decode(d *Decoder) (err error) {
	if m.ID, err = d.ReadU64(); err != nil {
		return err
	}
	if m.X, err = d.ReadU16(); err != nil {
		return err
	}
	if m.Y, err = d.ReadU16(); err != nil {
		return err
	}
	if m.Text, err = d.ReadString(); err != nil {
		return err
	}
	if m.Style.Fg, err = d.ReadU32(); err != nil {
		return err
	}
	if m.Style.Bg, err = d.ReadU32(); err != nil {
		return err
	}
	zbits, err := d.ReadU32()
	if err != nil {
		return err
	}
	m.Style.ZIndex = math.Float32frombits(zbits)
	return nil
}

type ClearOverlays struct {
	ID      uint64
	HasID   bool // false => clear all
}

func (m *ClearOverlays) Type() uint8 { return TypeClearOverlays }
func (m *ClearOverlays) encode(e *Encoder) error {
	if err := e.WriteBool(m.HasID); err != nil {
		return err
	}
	if !m.HasID {
		return nil
	}
	return e.WriteU64(m.ID)
}
func (m *ClearOverlays) decode(d *Decoder) (err error) {
	if m.HasID, err = d.ReadBool(); err != nil {
		return err
	}
	if !m.HasID {
		return nil
	}
	m.ID, err = d.ReadU64()
	return err
}

type ModalItem struct {
	ID          string
	Label       string
	Description string
	HasDesc     bool
}

func (mi *ModalItem) encode(e *Encoder) error {
	if err := e.WriteString(mi.ID); err != nil {
		return err
	}
	if err := e.WriteString(mi.Label); err != nil {
		return err
	}
	if err := e.WriteBool(mi.HasDesc); err != nil {
		return err
	}
	if !mi.HasDesc {
		return nil
	}
	return e.WriteString(mi.Description)
}

func (mi *ModalItem) decode(d *Decoder) (err error) {
	if mi.ID, err = d.ReadString(); err != nil {
		return err
	}
	if mi.Label, err = d.ReadString(); err != nil {
		return err
	}
	if mi.HasDesc, err = d.ReadBool(); err != nil {
		return err
	}
	if !mi.HasDesc {
		return nil
	}
	mi.Description, err = d.ReadString()
	return err
}

type ShowModal struct {
	Title string
	Items []ModalItem
}

func (m *ShowModal) Type() uint8 { return TypeShowModal }
func (m *ShowModal) encode(e *Encoder) error {
	if err := e.WriteString(m.Title); err != nil {
		return err
	}
	if err := e.WriteU16(uint16(len(m.Items))); err != nil {
		return err
	}
	for i := range m.Items {
		if err := m.Items[i].encode(e); err != nil {
			return err
		}
	}
	return nil
}
func (m *ShowModal) decode(d *Decoder) error {
	title, err := d.ReadString()
	if err != nil {
		return err
	}
	m.Title = title
	n, err := d.ReadU16()
	if err != nil {
		return err
	}
	m.Items = make([]ModalItem, n)
	for i := range m.Items {
		if err := m.Items[i].decode(d); err != nil {
			return err
		}
	}
	return nil
}

type HideModal struct{}

func (m *HideModal) Type() uint8            { return TypeHideModal }
func (m *HideModal) encode(e *Encoder) error { return nil }
func (m *HideModal) decode(d *Decoder) error { return nil }

// PluginInspectorInfo describes one loaded plugin for PluginList.
type PluginInspectorInfo struct {
	Name, Version, Description, Author string
	Homepage                           string
	HasHomepage                        bool
	APIVersion, MinScarabVersion        string
	Enabled                            bool
	FailureCount                       uint32
}

func (p *PluginInspectorInfo) encode(e *Encoder) error {
	for _, s := range []string{p.Name, p.Version, p.Description, p.Author} {
		if err := e.WriteString(s); err != nil {
			return err
		}
	}
	if err := e.WriteBool(p.HasHomepage); err != nil {
		return err
	}
	if p.HasHomepage {
		if err := e.WriteString(p.Homepage); err != nil {
			return err
		}
	}
	if err := e.WriteString(p.APIVersion); err != nil {
		return err
	}
	if err := e.WriteString(p.MinScarabVersion); err != nil {
		return err
	}
	if err := e.WriteBool(p.Enabled); err != nil {
		return err
	}
	return e.WriteU32(p.FailureCount)
}

func (p *PluginInspectorInfo) decode(d *Decoder) (err error) {
	if p.Name, err = d.ReadString(); err != nil {
		return err
	}
	if p.Version, err = d.ReadString(); err != nil {
		return err
	}
	if p.Description, err = d.ReadString(); err != nil {
		return err
	}
	if p.Author, err = d.ReadString(); err != nil {
		return err
	}
	if p.HasHomepage, err = d.ReadBool(); err != nil {
		return err
	}
	if p.HasHomepage {
		if p.Homepage, err = d.ReadString(); err != nil {
			return err
		}
	}
	if p.APIVersion, err = d.ReadString(); err != nil {
		return err
	}
	if p.MinScarabVersion, err = d.ReadString(); err != nil {
		return err
	}
	if p.Enabled, err = d.ReadBool(); err != nil {
		return err
	}
	p.FailureCount, err = d.ReadU32()
	return err
}

type PluginList struct{ Plugins []PluginInspectorInfo }

func (m *PluginList) Type() uint8 { return TypeDaemonPluginList }
func (m *PluginList) encode(e *Encoder) error {
	if err := e.WriteU16(uint16(len(m.Plugins))); err != nil {
		return err
	}
	for i := range m.Plugins {
		if err := m.Plugins[i].encode(e); err != nil {
			return err
		}
	}
	return nil
}
func (m *PluginList) decode(d *Decoder) error {
	n, err := d.ReadU16()
	if err != nil {
		return err
	}
	m.Plugins = make([]PluginInspectorInfo, n)
	for i := range m.Plugins {
		if err := m.Plugins[i].decode(d); err != nil {
			return err
		}
	}
	return nil
}

type PluginStatusChanged struct {
	Name    string
	Enabled bool
}

func (m *PluginStatusChanged) Type() uint8 { return TypePluginStatusChanged }
func (m *PluginStatusChanged) encode(e *Encoder) error {
	if err := e.WriteString(m.Name); err != nil {
		return err
	}
	return e.WriteBool(m.Enabled)
}
func (m *PluginStatusChanged) decode(d *Decoder) (err error) {
	if m.Name, err = d.ReadString(); err != nil {
		return err
	}
	m.Enabled, err = d.ReadBool()
	return err
}

type PluginError struct{ Name, Error string }

func (m *PluginError) Type() uint8 { return TypePluginError }
func (m *PluginError) encode(e *Encoder) error {
	if err := e.WriteString(m.Name); err != nil {
		return err
	}
	return e.WriteString(m.Error)
}
func (m *PluginError) decode(d *Decoder) (err error) {
	if m.Name, err = d.ReadString(); err != nil {
		return err
	}
	m.Error, err = d.ReadString()
	return err
}

type PluginLog struct {
	PluginName string
	Level      LogLevel
	Message    string
}

func (m *PluginLog) Type() uint8 { return TypePluginLog }
func (m *PluginLog) encode(e *Encoder) error {
	if err := e.WriteString(m.PluginName); err != nil {
		return err
	}
	if err := e.WriteU8(uint8(m.Level)); err != nil {
		return err
	}
	return e.WriteString(m.Message)
}
func (m *PluginLog) decode(d *Decoder) error {
	name, err := d.ReadString()
	if err != nil {
		return err
	}
	lvl, err := d.ReadU8()
	if err != nil {
		return err
	}
	msg, err := d.ReadString()
	if err != nil {
		return err
	}
	m.PluginName, m.Level, m.Message = name, LogLevel(lvl), msg
	return nil
}

type PluginNotification struct {
	Title, Body string
	Level       NotifyLevel
}

func (m *PluginNotification) Type() uint8 { return TypePluginNotification }
func (m *PluginNotification) encode(e *Encoder) error {
	if err := e.WriteString(m.Title); err != nil {
		return err
	}
	if err := e.WriteString(m.Body); err != nil {
		return err
	}
	return e.WriteU8(uint8(m.Level))
}
func (m *PluginNotification) decode(d *Decoder) error {
	title, err := d.ReadString()
	if err != nil {
		return err
	}
	body, err := d.ReadString()
	if err != nil {
		return err
	}
	lvl, err := d.ReadU8()
	if err != nil {
		return err
	}
	m.Title, m.Body, m.Level = title, body, NotifyLevel(lvl)
	return nil
}

// newMessage constructs a zero-valued Message for the given type tag, or
// reports ErrUnknownType if the tag isn't recognized. Unknown variants
// must cause the peer connection to close per spec.md §4.1.
func newMessage(t uint8) (Message, error) {
	switch t {
	case TypeResize:
		return &Resize{}, nil
	case TypeInput:
		return &Input{}, nil
	case TypePing:
		return &Ping{}, nil
	case TypeDisconnect:
		return &Disconnect{}, nil
	case TypeLoadPlugin:
		return &LoadPlugin{}, nil
	case TypeSessionCreate:
		return &SessionCreate{}, nil
	case TypeSessionDelete:
		return &SessionDelete{}, nil
	case TypeSessionList:
		return &SessionList{}, nil
	case TypeSessionAttach:
		return &SessionAttach{}, nil
	case TypeSessionDetach:
		return &SessionDetach{}, nil
	case TypeSessionRename:
		return &SessionRename{}, nil
	case TypePluginList:
		return &PluginListRequest{}, nil
	case TypePluginEnable:
		return &PluginEnable{}, nil
	case TypePluginDisable:
		return &PluginDisable{}, nil
	case TypePluginReload:
		return &PluginReload{}, nil
	case TypeCommandSelect:
		return &CommandSelected{}, nil
	case TypeDaemonSession:
		return &DaemonSession{}, nil
	case TypeDrawOverlay:
		return &DrawOverlay{}, nil
	case TypeClearOverlays:
		return &ClearOverlays{}, nil
	case TypeShowModal:
		return &ShowModal{}, nil
	case TypeHideModal:
		return &HideModal{}, nil
	case TypeDaemonPluginList:
		return &PluginList{}, nil
	case TypePluginStatusChanged:
		return &PluginStatusChanged{}, nil
	case TypePluginError:
		return &PluginError{}, nil
	case TypePluginLog:
		return &PluginLog{}, nil
	case TypePluginNotification:
		return &PluginNotification{}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, t)
	}
}

var ErrUnknownType = fmt.Errorf("protocol: unknown message type")
