// Package miniaudio provides a malgo-backed playback monitor used to listen
// in on the agent's spoken replies while a test run is in progress.
package miniaudio

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/callwright/callwright/core/audio"
)

// Player plays reply audio on the default output device. Payloads are queued
// in a rolling buffer that the device callback drains; an underrun plays
// silence until more audio arrives.
type Player struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	device       *malgo.Device

	pending []byte
	audioMu sync.Mutex

	mu sync.Mutex
}

func NewPlayer(info audio.EncodingInfo) (*Player, error) {
	if info.IsZero() {
		info = audio.GetDefaultEncodingInfo()
	}
	if info.Encoding != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported playback encoding %q", info.Encoding.Name())
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	player := &Player{audioContext: audioCtx}

	format := malgo.FormatS16
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(info.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(info.SampleRate) / 10 // ~100ms of audio
	config.Periods = 4

	if player.device, err = malgo.InitDevice(
		audioCtx.Context,
		config,
		malgo.DeviceCallbacks{Data: player.processAudio(bytesPerFrame)},
	); err != nil {
		player.release()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := player.device.Start(); err != nil {
		player.release()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return player, nil
}

// Play queues a reply payload for the output device. WAV payloads are
// unwrapped to their PCM body first.
func (p *Player) Play(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil || !p.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	if _, pcm, err := audio.DecodeWAV(data); err == nil {
		data = pcm
	}

	p.audioMu.Lock()
	defer p.audioMu.Unlock()
	p.pending = append(p.pending, data...)
	return nil
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil && p.device.IsStarted() {
		if err := p.device.Stop(); err != nil {
			log.Printf("Failed to stop playback device: %v", err)
		}
	}
	p.release()
	return nil
}

func (p *Player) release() {
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	if p.audioContext != nil {
		_ = p.audioContext.Uninit()
		p.audioContext.Free()
		p.audioContext = nil
	}
}

func (p *Player) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		p.audioMu.Lock()
		defer p.audioMu.Unlock()
		if len(p.pending) == 0 {
			return
		}

		n := copy(pOutput, p.pending[:min(need, len(p.pending))])
		p.pending = p.pending[n:]
	}
}
