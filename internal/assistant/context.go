// Package assistant prepares the plan and instructions handed to an external
// chat model. The chat transport itself lives outside this module.
package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// Language selects the answer language.
type Language string

const (
	Turkish Language = "tr"
	English Language = "en"
)

var ErrUnsupportedLanguage = errors.New("unsupported assistant language")

// ParseLanguage accepts "tr" or "en" in any case.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case Turkish:
		return Turkish, nil
	case English:
		return English, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// Name is the language's English name, as used in the instruction.
func (l Language) Name() string {
	if l == Turkish {
		return "Turkish"
	}
	return "English"
}

// Context is what a chat session is initialized with.
type Context struct {
	Language          Language `json:"language"`
	SystemInstruction string   `json:"system_instruction"`
	Plan              string   `json:"plan"`
}

// planRecord fixes the field order of a serialized job. Keys are the plan
// workbook's own column headers so the model sees the vocabulary planners use.
type planRecord struct {
	MachineID     types.MachineID `json:"machineId"`
	Sequence      string          `json:"SIRA NO"`
	Start         string          `json:"İŞ EMRİ TARİH ve SAATİ"`
	Due           string          `json:"TERMİN TARİHİ"`
	Customer      string          `json:"MÜŞTERİ ADI"`
	PartNo        string          `json:"PARÇA NO"`
	PartName      string          `json:"PARÇA ADI"`
	TotalQuantity string          `json:"TOPLAM ADET"`
	CycleTime     string          `json:"ÇEVRİM SÜRESİ"`
	TotalMinutes  string          `json:"TOPLAM DK"`
	GrossWeight   string          `json:"BRÜT ÜRÜN GRAMAJI"`
	Material      string          `json:"HAMMADDE ADI"`
	MaterialKg    string          `json:"TOPLAM GEREKLİ HAMMADDE KG"`
	PaintCode     string          `json:"BOYA KODU"`
	PaintQuantity string          `json:"TOPLAM GEREKLİ BOYA"`
	PaintKg       string          `json:"TOPLAM GEREKLİ BOYA KG."`
	CavityCount   string          `json:"TOPLAM GÖZ"`
	ShotCount     string          `json:"BASKI SAYISI"`
	RunHours      string          `json:"MAKİNE ÇALIŞMA SAATİ"`
	Downtime      string          `json:"MAKİNE DURUŞ SAATİ"`
	End           string          `json:"PARÇA ÜRETİM SONU TARİHİ ve SAATİ"`
}

// SerializePlan renders the plan as a JSON array in source order. Resolvable
// dates are written day-first; anything else keeps its cell text.
func SerializePlan(s *schedule.Snapshot) (string, error) {
	records := make([]planRecord, 0, s.Len())
	for _, e := range s.Entries() {
		j := e.Job
		records = append(records, planRecord{
			MachineID:     j.MachineID,
			Sequence:      j.SequenceNumber,
			Start:         displayInstant(e.Start, j.StartAt),
			Due:           displayInstant(e.Due, j.DueAt),
			Customer:      j.Customer,
			PartNo:        j.PartNo,
			PartName:      j.PartName,
			TotalQuantity: j.TotalQuantity,
			CycleTime:     j.CycleTime,
			TotalMinutes:  j.TotalMinutes,
			GrossWeight:   j.GrossWeight,
			Material:      j.Material,
			MaterialKg:    j.MaterialKg,
			PaintCode:     j.PaintCode,
			PaintQuantity: j.PaintQuantity,
			PaintKg:       j.PaintKg,
			CavityCount:   j.CavityCount,
			ShotCount:     j.ShotCount,
			RunHours:      j.RunHours,
			Downtime:      j.Downtime,
			End:           displayInstant(e.End, j.EndAt),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return "", fmt.Errorf("failed to serialize plan: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func displayInstant(in types.Instant, cell types.RawCell) string {
	if in.Valid {
		return datetime.FormatDayFirst(in.At)
	}
	return cell.String()
}

// CurrentDate is the date stamp prefixed to every prompt.
func CurrentDate(now time.Time) string {
	return datetime.FormatDayFirst(now)
}

// Prompt prefixes the user's text with the current date.
func Prompt(now time.Time, text string) string {
	return fmt.Sprintf("(Current Date: %s) %s", CurrentDate(now), text)
}

var instruction = template.Must(template.New("instruction").Parse(
	`You are a helpful and knowledgeable production planning assistant for a plastic injection molding company{{if .Company}} named {{.Company}}{{end}}.
IMPORTANT: The user's prompt will start with the current date and time, for example "(Current Date: 04.11.2025 22:00:44)". You MUST use this as the single point of reference for all time-related questions. The date format is ALWAYS GG.AA.YYYY (Day.Month.Year). For example, 10.11.2025 is November 10, 2025. Use this current date to understand "today", "tomorrow", "how many hours are left?", etc. Calculate all time differences based on this provided date. Do NOT mention the current date in your answers unless the user asks for it.

You will be given the entire production plan in a JSON string. The dates in this data (like "İŞ EMRİ TARİH ve SAATİ" and "PARÇA ÜRETİM SONU TARİHİ ve SAATİ") also follow the GG.AA.YYYY format. Be careful to interpret them correctly.
Your answers must be based *exclusively* on this data. Do not make up information.
Answer in a conversational, helpful, and concise manner.
You must answer questions *only* in {{.Language}}.{{if .Turkish}} When responding in Turkish, use Turkish terms like 'Makine'.{{end}}
Understand the context of the conversation to answer follow-up questions (e.g., if asked "which customer?" after a specific job was mentioned).
If the user asks a general question like "what's on machine 4?", you should look at the entire schedule and provide the most relevant information, such as current and upcoming jobs. Do not limit your search unless the user specifies a date.
If you cannot find any data that matches the user's request, say so clearly. For example: "{{.NotFound}}"

Here is the full production plan data:
{{.Plan}}`))

// BuildContext assembles the system instruction with the plan embedded.
func BuildContext(s *schedule.Snapshot, lang Language, company string) (Context, error) {
	if lang != Turkish && lang != English {
		return Context{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	plan, err := SerializePlan(s)
	if err != nil {
		return Context{}, err
	}

	notFound := "No jobs found for Customer X."
	if lang == Turkish {
		notFound = "Makine 4 için bu hafta bir iş bulunamadı."
	}

	var buf bytes.Buffer
	err = instruction.Execute(&buf, map[string]interface{}{
		"Company":  strings.TrimSpace(company),
		"Language": lang.Name(),
		"Turkish":  lang == Turkish,
		"NotFound": notFound,
		"Plan":     plan,
	})
	if err != nil {
		return Context{}, fmt.Errorf("failed to render instruction: %w", err)
	}

	return Context{Language: lang, SystemInstruction: buf.String(), Plan: plan}, nil
}
