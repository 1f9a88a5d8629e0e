package lift

import (
	"context"
	"image"
)

// Frame is one decoded video frame.
type Frame struct {
	Index int
	Image *image.RGBA
}

// VideoInfo is the stream metadata reported by a FrameSource.
type VideoInfo struct {
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameCount int     `json:"frame_count"` // 0 when unknown
}

// FrameSource reads frames sequentially. Next returns io.EOF at end of stream.
type FrameSource interface {
	Info() VideoInfo
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// FrameSink writes frames at the source rate and resolution.
type FrameSink interface {
	Write(frame Frame) error
	Close() error
}
