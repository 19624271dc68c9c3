package cmd

import (
	"context"
	"errors"
	"log/slog"

	"jarvis/internal/asr"
	"jarvis/internal/audio"
	"jarvis/internal/capture"
	"jarvis/internal/conversation"
	"jarvis/internal/identity"
	"jarvis/internal/intent"
	"jarvis/internal/keyword"
	"jarvis/internal/llm"
	"jarvis/internal/speaker"
	"jarvis/internal/tts"
	"jarvis/internal/vad"
	"jarvis/internal/wake"
)

// assistant is the fully wired pipeline.
type assistant struct {
	manager *audio.Manager
	synth   *tts.Service
	users   *identity.FileStore
	loop    *conversation.Loop
	log     *slog.Logger
}

func (o *globalOptions) newSynthesizer() (*tts.Service, error) {
	backend, err := tts.NewOpenAISynthesizer(o.cfg.TTS)
	if err != nil {
		return nil, err
	}
	return tts.NewService(o.cfg.TTS, backend, o.log), nil
}

func (o *globalOptions) newTranscriber() (*asr.OpenAITranscriber, error) {
	return asr.NewOpenAITranscriber(o.cfg.STT, o.log)
}

func (o *globalOptions) newAnswerer() (*llm.Answerer, error) {
	return llm.NewAnswerer(o.cfg.Answer, o.log)
}

// newAssistant builds every component the conversation loop needs. The
// caller must call close.
func (o *globalOptions) newAssistant() (*assistant, error) {
	cfg := o.cfg

	stt, err := o.newTranscriber()
	if err != nil {
		return nil, err
	}
	synth, err := o.newSynthesizer()
	if err != nil {
		return nil, err
	}
	answerer, err := o.newAnswerer()
	if err != nil {
		return nil, err
	}
	spotter, err := keyword.NewSpotter(cfg.Keyword, stt, o.log)
	if err != nil {
		return nil, err
	}
	classifier, err := vad.NewEnergyClassifier(cfg.VAD.Aggressiveness)
	if err != nil {
		return nil, err
	}

	manager := audio.GetManager()
	if err := manager.Initialize(); err != nil {
		return nil, err
	}

	device := audio.NewPortAudioDevice(manager)
	sink := audio.NewPortAudioSink(manager, cfg.Audio.OutputSampleRate)
	capturer := capture.New(device, classifier, capture.WithLogger(o.log))

	// 唤醒监听和播放打断共用一个 spotter, 两者不会同时运行
	spk := speaker.New(cfg.Speaker, sink, synth, device, spotter, o.log)
	listener := wake.NewListener(device, spotter, capturer, spk, cfg.Capture.PostWake, o.log)

	users := identity.Open(cfg.Identity.Path, o.log)
	// 其他进程 (jarvis users forget) 的修改在每次识别前生效
	if err := users.Watch(); err != nil {
		o.log.Warn("identity store will not be reloaded", "err", err)
	}
	components := conversation.Components{
		Listener:    listener,
		Capturer:    capturer,
		Transcriber: stt,
		Identifier:  users,
		Answerer:    answerer,
		Classifier:  intent.New(),
		Speaker:     spk,
		Refresher:   users,
	}
	if v := vad.NewVerifier(cfg.VAD, o.log); v != nil {
		components.Verifier = v
	}

	loop, err := conversation.New(cfg.ConversationConfig(), components, conversation.WithLogger(o.log))
	if err != nil {
		users.Close()
		manager.Terminate()
		return nil, err
	}
	return &assistant{manager: manager, synth: synth, users: users, loop: loop, log: o.log}, nil
}

// warmUp synthesizes the phrases said on every exchange so the first
// wake word gets an immediate answer.
func (a *assistant) warmUp(ctx context.Context, phrases ...string) {
	for _, p := range phrases {
		if _, err := a.synth.Synthesize(ctx, p); err != nil {
			// 预热失败不影响运行, 说的时候会再试
			a.log.Warn("speech warm-up failed", "text", p, "err", err)
			return
		}
	}
}

func (a *assistant) close() error {
	return errors.Join(a.users.Close(), a.manager.Terminate())
}
