/*
Define message structs for communication
- Server <-> API clients
- Server -> progress subscribers over websocket
*/
package message

import (
	"encoding/json"
	"time"
)

type Type string

const (
	// Frame processed, Data is a Progress
	TProgress Type = "Progress"

	// Render finished, Data is the final RenderInfo
	TDone Type = "Done"

	// Render failed, Data is an Error
	TError Type = "Error"
)

type Wrapper struct {
	Type Type
	Data json.RawMessage
}

type Progress struct {
	Frame int `json:"frame"`
	Total int `json:"total"`
}

type Error struct {
	Reason string `json:"reason"`
}

type RenderStatus string

const (
	RQueued    RenderStatus = "Queued"
	RRendering RenderStatus = "Rendering"
	RDone      RenderStatus = "Done"
	RFailed    RenderStatus = "Failed"
	// Video removed by the cleaner
	RExpired RenderStatus = "Expired"
)

type RenderInfo struct {
	Id          uint64       `json:"id"`
	Key         string       `json:"key"` // public id, used in urls
	Title       string       `json:"title"`
	Width       uint         `json:"width"`
	Height      uint         `json:"height"`
	Duration    float64      `json:"duration"`
	FPS         int          `json:"fps"`
	Frames      int          `json:"frames"`
	Emitted     int          `json:"emitted"`
	Dropped     int          `json:"dropped"`
	Format      string       `json:"format"`
	Status      RenderStatus `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	CreatedTime time.Time    `json:"createdTime"`
	StoppedTime time.Time    `json:"stoppedTime"`
}

// RenderQuery holds the url query options of a render request.
// Zero values keep the server defaults.
type RenderQuery struct {
	FPS    int     `schema:"fps,omitempty"`    // 0 infers it from the cast
	Idle   float64 `schema:"idle,omitempty"`   // idle time limit in seconds, 0 keeps every pause
	Width  uint    `schema:"width,omitempty"`  // override the header width
	Height uint    `schema:"height,omitempty"` // override the header height
	Format string  `schema:"format,omitempty"` // mp4, gif or webm
	Skip   bool    `schema:"skip,omitempty"`   // skip unsupported escape sequences
	Loop   int     `schema:"loop,omitempty"`   // gif loop count
	Title  string  `schema:"title,omitempty"`
}

func Unwrap(buff []byte) (Wrapper, error) {
	obj := Wrapper{}
	err := json.Unmarshal(buff, &obj)
	return obj, err
}

func Wrap(msgType Type, msgObject interface{}) (Wrapper, error) {
	data, err := json.Marshal(msgObject)
	if err != nil {
		return Wrapper{}, err
	}
	msg := Wrapper{
		Type: msgType,
		Data: data,
	}
	return msg, nil
}

func ToStruct(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
