package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Фиксированные имена артефактов. Каждый запуск перезаписывает их.
const (
	ImageFileName       = "photo.jpg"
	VoiceSampleFileName = "voice.wav"
	SpeechFileName      = "tts.wav"
	VideoFileName       = "output.mp4"
)

// Workspace описывает раскладку рабочих директорий на диске
type Workspace struct {
	inputDir  string
	outputDir string
	logger    *zap.Logger
}

// New создает рабочее пространство с указанными директориями
func New(inputDir, outputDir string, logger *zap.Logger) *Workspace {
	return &Workspace{
		inputDir:  inputDir,
		outputDir: outputDir,
		logger:    logger,
	}
}

// EnsureDirs создает входную и выходную директории. Повторный вызов безопасен.
func (w *Workspace) EnsureDirs() error {
	for _, dir := range []string{w.inputDir, w.outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("ошибка создания директории %s: %w", dir, err)
		}
	}
	return nil
}

func (w *Workspace) InputDir() string  { return w.inputDir }
func (w *Workspace) OutputDir() string { return w.outputDir }

// ImagePath возвращает путь к входному изображению
func (w *Workspace) ImagePath() string {
	return filepath.Join(w.inputDir, ImageFileName)
}

// VoiceSamplePath возвращает путь к образцу голоса
func (w *Workspace) VoiceSamplePath() string {
	return filepath.Join(w.inputDir, VoiceSampleFileName)
}

// SpeechPath возвращает путь к синтезированной речи
func (w *Workspace) SpeechPath() string {
	return filepath.Join(w.outputDir, SpeechFileName)
}

// VideoPath возвращает путь к итоговому видео
func (w *Workspace) VideoPath() string {
	return filepath.Join(w.outputDir, VideoFileName)
}

// SaveImage сохраняет изображение как есть, без перекодирования
func (w *Workspace) SaveImage(r io.Reader) (int64, error) {
	return w.writeFile(w.ImagePath(), r)
}

// SaveVoiceSample сохраняет образец голоса как есть
func (w *Workspace) SaveVoiceSample(r io.Reader) (int64, error) {
	return w.writeFile(w.VoiceSamplePath(), r)
}

// RemoveArtifacts удаляет все четыре артефакта. Отсутствующие файлы пропускаются.
func (w *Workspace) RemoveArtifacts() ([]string, error) {
	var removed []string
	for _, path := range []string{w.ImagePath(), w.VoiceSamplePath(), w.SpeechPath(), w.VideoPath()} {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("ошибка удаления %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func (w *Workspace) writeFile(path string, r io.Reader) (int64, error) {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания файла %s: %w", path, err)
	}

	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("ошибка записи файла %s: %w", path, err)
	}

	if err := out.Close(); err != nil {
		return n, fmt.Errorf("ошибка закрытия файла %s: %w", path, err)
	}

	w.logger.Debug("файл сохранен", zap.String("path", path), zap.Int64("size", n))
	return n, nil
}
