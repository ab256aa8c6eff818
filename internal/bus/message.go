package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wire type discriminators. The song types double as cache keys.
const (
	TypeFirework     = "firework"
	TypePing         = "ping"
	TypeSongProgress = "song/progress"
	TypeSongCurrent  = "song/current"
)

// ErrUnknownType is returned by Decode for a missing or unrecognised "type" field.
var ErrUnknownType = errors.New("unknown message type")

// Message is a closed set of events carried by the bus.
// Only the variants declared in this package implement it.
type Message interface {
	// Type returns the wire discriminator.
	Type() string
	// CacheKey returns the latest-value slot this message updates, or "" if it is not cached.
	CacheKey() string

	// clone returns a copy sharing no memory with the receiver.
	clone() Message
}

// Firework triggers the overlay firework animation.
type Firework struct{}

// Ping is a heartbeat.
type Ping struct{}

// SongProgress reports playback position of the current song, in seconds.
type SongProgress struct {
	Elapsed  uint64 `json:"elapsed"`
	Duration uint64 `json:"duration"`
}

// SongCurrent describes the song currently loaded in the player.
// Track and User are nil when nothing is playing.
type SongCurrent struct {
	Track  *Track  `json:"track"`
	User   *string `json:"user"`
	Paused bool    `json:"paused"`
}

func (m Firework) clone() Message     { return m }
func (m Ping) clone() Message         { return m }
func (m SongProgress) clone() Message { return m }

func (m SongCurrent) clone() Message {
	if m.User != nil {
		user := *m.User
		m.User = &user
	}
	m.Track = m.Track.Clone()
	return m
}

func (Firework) Type() string     { return TypeFirework }
func (Ping) Type() string         { return TypePing }
func (SongProgress) Type() string { return TypeSongProgress }
func (SongCurrent) Type() string  { return TypeSongCurrent }

func (Firework) CacheKey() string     { return "" }
func (Ping) CacheKey() string         { return "" }
func (SongProgress) CacheKey() string { return TypeSongProgress }
func (SongCurrent) CacheKey() string  { return TypeSongCurrent }

// SongProgressOf builds a progress update from player durations, truncated to whole seconds.
func SongProgressOf(elapsed, duration time.Duration) SongProgress {
	return SongProgress{
		Elapsed:  uint64(max(elapsed, 0) / time.Second),
		Duration: uint64(max(duration, 0) / time.Second),
	}
}

// NoSongProgress is the progress update sent when nothing is playing.
func NoSongProgress() SongProgress {
	return SongProgress{}
}

// SongCurrentOf builds a current-song update. A nil user (nobody requested the song) is
// encoded as null; an empty user is kept as "".
func SongCurrentOf(track *Track, user *string, paused bool) SongCurrent {
	return SongCurrent{Track: track, User: user, Paused: paused}.clone().(SongCurrent)
}

// NoSongCurrent is the current-song update sent when nothing is playing.
func NoSongCurrent(paused bool) SongCurrent {
	return SongCurrent{Paused: paused}
}

// Encode serializes a message to its single-line JSON wire form (without trailing newline).
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case Firework, Ping:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{v.Type()})
	case SongProgress:
		return json.Marshal(struct {
			Type string `json:"type"`
			SongProgress
		}{v.Type(), v})
	case SongCurrent:
		return json.Marshal(struct {
			Type string `json:"type"`
			SongCurrent
		}{v.Type(), v})
	case nil:
		return nil, fmt.Errorf("encode: nil message")
	default:
		return nil, fmt.Errorf("encode %T: %w", m, ErrUnknownType)
	}
}

// Decode parses one wire message.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch head.Type {
	case TypeFirework:
		return Firework{}, nil
	case TypePing:
		return Ping{}, nil
	case TypeSongProgress:
		var m SongProgress
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return m, nil
	case TypeSongCurrent:
		var m SongCurrent
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("decode %q: %w", head.Type, ErrUnknownType)
	}
}
