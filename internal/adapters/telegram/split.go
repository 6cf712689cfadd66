package telegram

import "strings"

const messageLimit = 4096

// SplitMessage режет текст на части в пределах лимита Telegram,
// предпочитая границы строк, чтобы не рвать форматированные блоки.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len([]rune(trimmed)) <= messageLimit {
		return []string{trimmed}
	}

	var parts []string
	var current []rune
	for _, line := range strings.Split(trimmed, "\n") {
		lineRunes := []rune(line)
		// строка длиннее лимита режется жёстко
		for len(lineRunes) > messageLimit {
			flushRunes(&parts, &current)
			parts = append(parts, string(lineRunes[:messageLimit]))
			lineRunes = lineRunes[messageLimit:]
		}
		if len(current)+len(lineRunes)+1 > messageLimit {
			flushRunes(&parts, &current)
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, lineRunes...)
	}
	flushRunes(&parts, &current)
	return parts
}

func flushRunes(parts *[]string, current *[]rune) {
	chunk := strings.Trim(string(*current), "\n")
	if chunk != "" {
		*parts = append(*parts, chunk)
	}
	*current = (*current)[:0]
}
