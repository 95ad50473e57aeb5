// Package importer читает вопросы викторины из xlsx-файлов.
package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"github.com/yourusername/quiz-api/internal/service"
)

// Обязательные колонки заголовка. image - необязательная.
var requiredColumns = []string{"subject", "question", "option_a", "option_b", "option_c", "option_d", "correct_answer"}

// короткие названия колонок: subject | question | A | B | C | D | correct
var columnAliases = map[string]string{
	"a":       "option_a",
	"b":       "option_b",
	"c":       "option_c",
	"d":       "option_d",
	"correct": "correct_answer",
}

// числовой формат правильного ответа (1-4) приводится к букве
var numericAnswers = map[string]string{"1": "A", "2": "B", "3": "C", "4": "D"}

// ReadQuestions читает строки листа sheet (пустое имя - первый лист).
// Первая строка - заголовок, пустые строки пропускаются.
func ReadQuestions(r io.Reader, sheet string) ([]service.ImportedQuestion, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if full, ok := columnAliases[key]; ok {
			key = full
		}
		columns[key] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("column %q is missing in header", name)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	questions := make([]service.ImportedQuestion, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		answer := strings.ToUpper(cell(row, "correct_answer"))
		if letter, ok := numericAnswers[answer]; ok {
			answer = letter
		}
		questions = append(questions, service.ImportedQuestion{
			Subject:       cell(row, "subject"),
			Text:          cell(row, "question"),
			OptionA:       cell(row, "option_a"),
			OptionB:       cell(row, "option_b"),
			OptionC:       cell(row, "option_c"),
			OptionD:       cell(row, "option_d"),
			CorrectAnswer: answer,
			Image:         cell(row, "image"),
		})
	}
	return questions, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
