package bot

import (
	"fmt"
	"strings"
)

const (
	msgStart = "👋 Привет! Я превращаю фото, образец голоса и текст в говорящий аватар.\n\n" +
		"Пришлите в любом порядке:\n" +
		"📷 фото лица\n" +
		"🎤 образец голоса (голосовое сообщение или аудиофайл)\n" +
		"✍️ текст, который должен произнести аватар\n\n" +
		"/reset начинает заново, /help показывает подсказку."

	msgHelp = "Нужны три вещи: фото, образец голоса и текст. " +
		"Когда все будет собрано, я начну генерацию и пришлю видео. " +
		"Файлы больше 25MB не принимаются."

	msgReset          = "🔄 Данные сброшены. Можно начинать заново."
	msgUnknownCommand = "Неизвестная команда. Используйте /help."
	msgRateLimited    = "⚠️ Слишком много запросов. Подождите минуту."
	msgFileTooLarge   = "❌ Файл слишком большой. Максимум 25MB."
	msgUnsupported    = "❌ Этот тип сообщения не поддерживается. Пришлите фото, аудио или текст."
	msgDownloadFailed = "❌ Не удалось получить файл. Попробуйте еще раз."
	msgGenerating     = "⏳ Все данные получены, генерирую видео. Это может занять несколько минут..."
	msgFailed         = "❌ Не удалось сгенерировать видео. Попробуйте еще раз."
	msgDone           = "✅ Готово!"
)

// missingMessage формирует подсказку о недостающих данных
func missingMessage(received string, missing []string) string {
	return fmt.Sprintf("✅ %s получено. Осталось прислать: %s.", received, strings.Join(missing, ", "))
}
