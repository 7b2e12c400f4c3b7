// Package portaudio provides a portaudio-backed playback monitor, an
// alternative to the miniaudio one for systems where malgo has no backend.
package portaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/callwright/callwright/core/audio"
)

const defaultBufferSize = 1024

// Player plays reply audio on the default output device. Payloads are handed
// to a writer goroutine so the caller never blocks on the sound card.
type Player struct {
	bufferSize int
	stream     *portaudio.Stream
	out        []int16

	queue chan []byte
	done  chan struct{}

	closeOnce sync.Once
}

func NewPlayer(info audio.EncodingInfo, bufferSize int) (*Player, error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if info.IsZero() {
		info = audio.GetDefaultEncodingInfo()
	}
	if info.Encoding != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported playback encoding %q", info.Encoding.Name())
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(info.SampleRate), bufferSize, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	player := &Player{
		bufferSize: bufferSize,
		stream:     stream,
		out:        out,
		queue:      make(chan []byte, 16),
		done:       make(chan struct{}),
	}

	go player.writeLoop()

	return player, nil
}

// Play queues a reply payload for the output device. WAV payloads are
// unwrapped to their PCM body first. When the queue is full the payload is
// dropped rather than stalling the conversation.
func (p *Player) Play(data []byte) error {
	if _, pcm, err := audio.DecodeWAV(data); err == nil {
		data = pcm
	}

	select {
	case <-p.done:
		return fmt.Errorf("player closed")
	case p.queue <- data:
		return nil
	default:
		log.Println("Playback queue full, dropping reply audio")
		return nil
	}
}

func (p *Player) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		if err := p.stream.Stop(); err != nil {
			log.Printf("Failed to stop portaudio stream: %v", err)
		}
		_ = p.stream.Close()
		_ = portaudio.Terminate()
	})
	return nil
}

func (p *Player) writeLoop() {
	chunk := p.bufferSize * 2
	var leftover []byte

	for {
		select {
		case <-p.done:
			return
		case data := <-p.queue:
			data = append(leftover, data...)
			for len(data) >= chunk {
				_ = binary.Read(bytes.NewReader(data[:chunk]), binary.LittleEndian, p.out)
				if err := p.stream.Write(); err != nil {
					log.Printf("Failed to write to portaudio stream: %v", err)
				}
				data = data[chunk:]
			}
			leftover = data
		}
	}
}
