package homework

import (
	"fmt"
	"strings"
)

const (
	DefaultStatusChangedTemplate = `Изменился статус проверки работы "{name}". {verdict}`
	DefaultErrorReportTemplate   = `Ошибка в работе программы: {error}`
)

// DefaultVerdicts is the verdict text per status shown to the student.
var DefaultVerdicts = map[Status]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Messages holds every user-facing text. Templates use {name}, {verdict} and {error}.
type Messages struct {
	StatusChangedTemplate string
	ErrorReportTemplate   string
	Verdicts              map[Status]string
}

func DefaultMessages() Messages {
	v := make(map[Status]string, len(DefaultVerdicts))
	for k, s := range DefaultVerdicts {
		v[k] = s
	}
	return Messages{
		StatusChangedTemplate: DefaultStatusChangedTemplate,
		ErrorReportTemplate:   DefaultErrorReportTemplate,
		Verdicts:              v,
	}
}

// Check reports the first problem that would make the messages unusable.
func (m Messages) Check() error {
	if strings.TrimSpace(m.StatusChangedTemplate) == "" {
		return fmt.Errorf("status_changed template is empty")
	}
	if strings.TrimSpace(m.ErrorReportTemplate) == "" {
		return fmt.Errorf("error_report template is empty")
	}
	for _, st := range Statuses {
		if strings.TrimSpace(m.Verdicts[st]) == "" {
			return fmt.Errorf("verdict for status %q is missing", st)
		}
	}
	for st := range m.Verdicts {
		if !st.Known() {
			return fmt.Errorf("verdict for unknown status %q", st)
		}
	}
	return nil
}

func (m Messages) StatusChanged(name, verdict string) string {
	return strings.NewReplacer("{name}", name, "{verdict}", verdict).Replace(m.StatusChangedTemplate)
}

func (m Messages) ErrorReport(err error) string {
	text := "<nil>"
	if err != nil {
		text = err.Error()
	}
	return strings.NewReplacer("{error}", text).Replace(m.ErrorReportTemplate)
}
