package tva

import (
	"encoding/json"
	"fmt"
)

// BaseTopic is the default MQTT topic prefix for the bridge.
const BaseTopic = "tva/v1"

// Media kinds as they appear on the wire.
const (
	MediaAnimation = "animation"
	MediaVideo     = "video"
	MediaNone      = "none"
)

// Connection roles used by the push-socket registration handshake.
const (
	RoleDisplay = "display"
	RoleAdmin   = "admin"
	RoleBot     = "bot"
)

// Inbound push-socket message types.
const (
	MsgRegister         = "register"
	MsgTriggerAnimation = "trigger_animation"
	MsgGetStatus        = "get_status"
	MsgSceneChange      = "scene_change"
	MsgVideoControl     = "video_control"
)

// Outbound push-socket message types.
const (
	MsgStatus           = "status"
	MsgAnimationChanged = "animation_changed"
	MsgPageRefresh      = "page_refresh"
	MsgDevicesUpdated   = "devices_updated"
	MsgError            = "error"
	MsgInfo             = "info"
)

// Inbound is the envelope for every client-to-server push-socket message.
// Fields are populated depending on Type.
type Inbound struct {
	Type             string            `json:"type"`
	Role             string            `json:"role,omitempty"`
	Animation        string            `json:"animation,omitempty"`
	SceneName        string            `json:"scene_name,omitempty"`
	AnimationMapping map[string]string `json:"animation_mapping,omitempty"`
	Action           string            `json:"action,omitempty"`
	Value            json.RawMessage   `json:"value,omitempty"`
}

// Status is the full status snapshot unicast to a requester.
type Status struct {
	Type               string   `json:"type"`
	CurrentAnimation   string   `json:"current_animation,omitempty"`
	MediaType          string   `json:"media_type"`
	Animations         []string `json:"animations"`
	Videos             []string `json:"videos"`
	AllMedia           []string `json:"all_media"`
	DisplayConnections int      `json:"display_connections"`
	AdminCount         int      `json:"admin_count"`
	LegacyConnections  int      `json:"legacy_connections"`
	TotalConnections   int      `json:"total_connections"`
	OBSConnected       bool     `json:"obs_connected"`
}

// AnimationChanged announces a media change to every display and admin.
type AnimationChanged struct {
	Type              string `json:"type"`
	PreviousAnimation string `json:"previous_animation,omitempty"`
	CurrentAnimation  string `json:"current_animation"`
	MediaType         string `json:"media_type"`
	Message           string `json:"message"`
	RefreshPage       bool   `json:"refresh_page"`
}

// PageRefresh is the explicit reload signal, kept distinct from
// AnimationChanged so displays can treat metadata updates and full
// reloads differently.
type PageRefresh struct {
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	NewMedia  string `json:"new_media"`
	MediaType string `json:"media_type"`
}

// DevicesUpdated reports the connection census after register/unregister.
type DevicesUpdated struct {
	Type               string `json:"type"`
	DisplayConnections int    `json:"display_connections"`
	AdminCount         int    `json:"admin_count"`
	LegacyConnections  int    `json:"legacy_connections"`
	TotalConnections   int    `json:"total_connections"`
}

// VideoControl relays a playback action to displays. The server does not
// interpret Action beyond checking that a video is showing.
type VideoControl struct {
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// ErrorMessage is unicast to the requester on a failed operation.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// InfoMessage carries non-error informational text to a single client.
type InfoMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OBSStatus reports the external tool link state over the admin API.
type OBSStatus struct {
	Connected            bool   `json:"connected"`
	ShouldBeConnected    bool   `json:"should_be_connected"`
	AutoReconnectEnabled bool   `json:"auto_reconnect_enabled"`
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
}

// Raw legacy socket actions.
const (
	RawActionTrigger   = "trigger_animation"
	RawActionGetStatus = "get_status"
)

// RawRequest is one line-delimited JSON request on the legacy socket.
type RawRequest struct {
	Action       string `json:"action"`
	Animation    string `json:"animation,omitempty"`
	Instant      bool   `json:"instant,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// RawReply is the synchronous reply to a RawRequest.
type RawReply struct {
	Status           string   `json:"status"`
	Message          string   `json:"message,omitempty"`
	Animation        string   `json:"animation,omitempty"`
	MediaType        string   `json:"media_type,omitempty"`
	CurrentAnimation string   `json:"current_animation,omitempty"`
	AvailableMedia   []string `json:"available_media,omitempty"`
	Connections      int      `json:"connections,omitempty"`
}

// RawSuccess builds a success reply.
func RawSuccess(animation, mediaType string) RawReply {
	return RawReply{Status: "success", Animation: animation, MediaType: mediaType}
}

// RawError builds an error reply.
func RawError(message string) RawReply {
	return RawReply{Status: "error", Message: message}
}

// TopicState is the retained topic carrying the current display state.
func TopicState(base string) string {
	return fmt.Sprintf("%s/state", base)
}

// TopicEvents carries every media change event.
func TopicEvents(base string) string {
	return fmt.Sprintf("%s/events", base)
}

// TopicTrigger is the inbound command topic for bot integrations.
func TopicTrigger(base string) string {
	return fmt.Sprintf("%s/cmd/trigger", base)
}
