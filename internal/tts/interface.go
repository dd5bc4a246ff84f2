package tts

import "context"

// VoiceCloner представляет интерфейс сервиса клонирования голоса.
// Синтезирует text голосом из referencePath и записывает WAV в outputPath.
type VoiceCloner interface {
	SynthesizeVoice(ctx context.Context, text, referencePath, outputPath string) error
}

// ReferenceTranscriber возвращает текст, произнесенный в образце голоса
type ReferenceTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
