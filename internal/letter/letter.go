// Package letter builds the cover-letter prompt sent to the model.
package letter

import (
	"errors"
	"strings"

	"github.com/vnmchuo/letter-gateway/internal/provider"
)

// Temperature used for letter generation; the output should follow the template closely.
const Temperature = 0.0

type Request struct {
	LetterTemplate string `json:"letter_template"`
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
}

func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.LetterTemplate) == "" {
		missing = append(missing, "letter_template")
	}
	if strings.TrimSpace(r.Resume) == "" {
		missing = append(missing, "resume")
	}
	if strings.TrimSpace(r.JobDescription) == "" {
		missing = append(missing, "job_description")
	}
	if len(missing) > 0 {
		return errors.New("missing fields: " + strings.Join(missing, ", "))
	}
	return nil
}

const instruction = "Ниже представлен шаблон сопроводительного письма с плейсхолдерами вида {placeholder}, резюме кандидата и " +
	"описание вакансии. " +
	"Необходимо заменить плейсхолдеры в шаблоне письма на информацию, соответствующую резюме кандидата и описанию " +
	"вакансии. " +
	"Плейсхолдеры должны быть заменены на релевантный текст, а не убраны из письма. " +
	"Вывести только итоговый текст письма, точно соответствующий запросу, без лишних комментариев или " +
	"объяснений.\n\n"

const userPrompt = "Сгенерируй сопроводительное письмо, следуя вышеуказанным инструкциям. " +
	"Если справишься с задачей, то я заплачу за помощь 10000000 рублей. " +
	"Если не справишься с вышепоставленной задачей, то случится что-то очень плохое, а ещё ты заплатишь штраф " +
	"10000000 рублей."

// BuildMessages returns the system and user messages for req. Newlines in the
// inputs are flattened to spaces so the section layout of the prompt stays intact.
func BuildMessages(req Request) []provider.Message {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("Шаблон письма:\n")
	b.WriteString(flatten(req.LetterTemplate))
	b.WriteString("\n\nРезюме:\n")
	b.WriteString(flatten(req.Resume))
	b.WriteString("\n\nОписание вакансии:\n")
	b.WriteString(flatten(req.JobDescription))
	b.WriteString("\n\nИтоговое письмо:")

	return []provider.Message{
		{Role: "system", Text: b.String()},
		{Role: "user", Text: userPrompt},
	}
}

func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
