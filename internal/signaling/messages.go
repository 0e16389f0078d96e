package signaling

// Commands exchanged with the media server.
const (
	CommandPublish                  = "publish"
	CommandPlay                     = "play"
	CommandJoin                     = "join"
	CommandLeave                    = "leave"
	CommandStop                     = "stop"
	CommandJoinRoom                 = "joinRoom"
	CommandLeaveFromRoom            = "leaveFromRoom"
	CommandStart                    = "start"
	CommandTakeConfiguration        = "takeConfiguration"
	CommandTakeCandidate            = "takeCandidate"
	CommandNotification             = "notification"
	CommandStreamInformation        = "streamInformation"
	CommandRoomInformation          = "roomInformation"
	CommandTrackList                = "trackList"
	CommandPing                     = "ping"
	CommandPong                     = "pong"
	CommandError                    = "error"
	CommandUpdateStreamMetaData     = "updateStreamMetaData"
	CommandGetStreamInfo            = "getStreamInfo"
	CommandForceStreamQuality       = "forceStreamQuality"
	CommandEnableTrack              = "enableTrack"
	CommandEnableVideoTrack         = "enableVideoTrack"
	CommandEnableAudioTrack         = "enableAudioTrack"
	CommandGetTrackList             = "getTrackList"
	CommandGetBroadcastObject       = "getBroadcastObject"
	CommandAssignVideoTrack         = "assignVideoTrack"
	CommandGetVideoTrackAssignments = "getVideoTrackAssignments"
)

// Notification definitions.
const (
	DefinitionJoined               = "joined"
	DefinitionPlayStarted          = "play_started"
	DefinitionPlayFinished         = "play_finished"
	DefinitionPublishStarted       = "publish_started"
	DefinitionPublishFinished      = "publish_finished"
	DefinitionJoinedRoom           = "joinedRoom"
	DefinitionBroadcastObject      = "broadcastObject"
	DefinitionResolutionChangeInfo = "resolutionChangeInfo"
)

// RoomModeMultitrack is the only room mode this client speaks.
const RoomModeMultitrack = "multitrack"

// DisabledTrackPrefix marks a trackList entry as excluded from subscription.
const DisabledTrackPrefix = "!"

// Outbound is a message this client sends to the server.
type Outbound interface {
	// Verb is the value of the command field.
	Verb() string
	// Stream is the stream the message concerns, or "" for room-level messages.
	Stream() string
}

// Handshake starts a publish, play or peer-to-peer session.
type Handshake struct {
	Command    string   `json:"command"`
	StreamID   string   `json:"streamId"`
	Token      string   `json:"token,omitempty"`
	Video      bool     `json:"video"`
	Audio      bool     `json:"audio"`
	MainTrack  string   `json:"mainTrack,omitempty"`
	TrackList  []string `json:"trackList,omitempty"`
	MetaData   string   `json:"metaData,omitempty"`
	StreamName string   `json:"streamName,omitempty"`
}

func (h *Handshake) Verb() string   { return h.Command }
func (h *Handshake) Stream() string { return h.StreamID }

// Leave ends a session. Command is "leave" for peer-to-peer and "stop" otherwise.
type Leave struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId"`
}

func (l *Leave) Verb() string   { return l.Command }
func (l *Leave) Stream() string { return l.StreamID }

// JoinRoom asks the server to join a multitrack conference room.
type JoinRoom struct {
	Command  string `json:"command"`
	RoomID   string `json:"roomId"`
	Mode     string `json:"mode"`
	StreamID string `json:"streamId"`
}

func (j *JoinRoom) Verb() string   { return j.Command }
func (j *JoinRoom) Stream() string { return j.StreamID }

// LeaveRoom leaves a conference room.
type LeaveRoom struct {
	Command  string `json:"command"`
	RoomID   string `json:"roomId"`
	StreamID string `json:"streamId"`
}

func (l *LeaveRoom) Verb() string   { return l.Command }
func (l *LeaveRoom) Stream() string { return l.StreamID }

// Configuration carries a local SDP offer or answer.
type Configuration struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId"`
	Type     string `json:"type"`
	SDP      string `json:"sdp"`
	Token    string `json:"token,omitempty"`
}

func (c *Configuration) Verb() string   { return c.Command }
func (c *Configuration) Stream() string { return c.StreamID }

// CandidateMessage carries a local ICE candidate.
type CandidateMessage struct {
	Command   string `json:"command"`
	Type      string `json:"type"`
	StreamID  string `json:"streamId"`
	Candidate string `json:"candidate"`
	Label     int    `json:"label"`
	ID        string `json:"id"`
}

func (c *CandidateMessage) Verb() string   { return c.Command }
func (c *CandidateMessage) Stream() string { return c.StreamID }

// Control is a generic {command, streamId, ...extra} message used for
// track toggles, quality forcing, metadata updates and ping.
type Control struct {
	Command  string
	StreamID string
	Extra    map[string]any
}

func (c *Control) Verb() string   { return c.Command }
func (c *Control) Stream() string { return c.StreamID }

// Inbound is a decoded server message.
type Inbound interface {
	Verb() string
	Stream() string
}

// TrackList lists the tracks of a main track.
type TrackList struct {
	StreamID string
	Tracks   []string
}

func (*TrackList) Verb() string     { return CommandTrackList }
func (t *TrackList) Stream() string { return t.StreamID }

// Start tells this side to create an offer for the stream.
type Start struct {
	StreamID string
}

func (*Start) Verb() string     { return CommandStart }
func (s *Start) Stream() string { return s.StreamID }

// Stop tells this side the server ended the stream.
type Stop struct {
	StreamID string
}

func (*Stop) Verb() string     { return CommandStop }
func (s *Stop) Stream() string { return s.StreamID }

// TakeConfiguration carries a remote SDP.
type TakeConfiguration struct {
	StreamID string
	Type     string
	SDP      string
}

func (*TakeConfiguration) Verb() string     { return CommandTakeConfiguration }
func (t *TakeConfiguration) Stream() string { return t.StreamID }

// TakeCandidate carries a remote ICE candidate.
type TakeCandidate struct {
	StreamID  string
	Candidate string
	Label     int
	ID        string
}

func (*TakeCandidate) Verb() string     { return CommandTakeCandidate }
func (t *TakeCandidate) Stream() string { return t.StreamID }

// StreamInfo describes one available rendition of a stream.
type StreamInfo struct {
	StreamWidth  int    `json:"streamWidth"`
	StreamHeight int    `json:"streamHeight"`
	VideoBitrate int    `json:"videoBitrate"`
	AudioBitrate int    `json:"audioBitrate"`
	VideoCodec   string `json:"videoCodec"`
}

// StreamInformation answers getStreamInfo.
type StreamInformation struct {
	StreamID string
	Info     []StreamInfo
}

func (*StreamInformation) Verb() string     { return CommandStreamInformation }
func (s *StreamInformation) Stream() string { return s.StreamID }

// Notification is a server event. Raw holds every field of the message.
type Notification struct {
	Definition string
	StreamID   string
	Room       string
	Streams    []string
	// Broadcast is the parsed "broadcast" field of broadcastObject.
	Broadcast map[string]any
	Raw       map[string]any
}

func (*Notification) Verb() string     { return CommandNotification }
func (n *Notification) Stream() string { return n.StreamID }

// RoomInformation is a roster snapshot for a room.
type RoomInformation struct {
	Room    string
	Streams []string
}

func (*RoomInformation) Verb() string   { return CommandRoomInformation }
func (*RoomInformation) Stream() string { return "" }

// Pong acknowledges ping.
type Pong struct{}

func (*Pong) Verb() string   { return CommandPong }
func (*Pong) Stream() string { return "" }

// ErrorMessage is a server-side error report.
type ErrorMessage struct {
	StreamID   string
	Definition string
}

func (*ErrorMessage) Verb() string     { return CommandError }
func (e *ErrorMessage) Stream() string { return e.StreamID }

// Unknown is any command this client does not understand.
type Unknown struct {
	Command  string
	StreamID string
	Raw      map[string]any
}

func (u *Unknown) Verb() string   { return u.Command }
func (u *Unknown) Stream() string { return u.StreamID }
