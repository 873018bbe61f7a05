package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"go-availability/core/constants"
	calentity "go-availability/modules/calendar/entity"
	respservice "go-availability/modules/response/service"

	ical "github.com/emersion/go-ical"
	"github.com/xuri/excelize/v2"
)

const (
	icalProductID      = "-//go-availability//results//EN"
	floatingTimeLayout = "20060102T150405"

	sheetRanked    = "Ranked"
	sheetResponses = "Responses"
)

// slotStart joins a slot's date and time-of-day into a wall-clock time with no
// zone attached.
func slotStart(s calentity.Slot) (time.Time, error) {
	return time.Parse(constants.DateLayout+" "+constants.TimeLayout, s.Date+" "+s.Time)
}

// BuildICS renders the top ranked slots as tentative events. Times are
// written in floating form since calendars carry no time zone.
func BuildICS(snap *respservice.Snapshot, top int, slotMinutes int, now time.Time) ([]byte, error) {
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	total := len(snap.Responses)
	cal := snap.Calendar

	out := ical.NewCalendar()
	out.Props.SetText(ical.PropVersion, "2.0")
	out.Props.SetText(ical.PropProductID, icalProductID)
	out.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	for _, sc := range respservice.TopN(snap.Ranked, top) {
		start, err := slotStart(sc.Slot)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", sc.Slot.CanonicalKey, err)
		}
		end := start.Add(time.Duration(slotMinutes) * time.Minute)
		coverage := respservice.Coverage(sc.Count, total)

		ev := ical.NewComponent(ical.CompEvent)
		ev.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@go-availability", cal.ID, start.Format(floatingTimeLayout)))
		ev.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		ev.Props.Set(floatingProp(ical.PropDateTimeStart, start))
		ev.Props.Set(floatingProp(ical.PropDateTimeEnd, end))
		ev.Props.SetText(ical.PropSummary, fmt.Sprintf("%s (%d/%d available)", cal.Name, sc.Count, total))
		ev.Props.SetText(ical.PropDescription, fmt.Sprintf("Coverage %.0f%% (%s)\nAvailable: %s",
			coverage*100, respservice.Tier(coverage), strings.Join(sc.Participants, ", ")))
		ev.Props.SetText(ical.PropStatus, "TENTATIVE")
		out.Children = append(out.Children, ev)
	}

	var buf bytes.Buffer
	if len(out.Children) == 0 {
		// go-ical refuses to encode a calendar without components.
		writeEmptyCalendar(&buf)
		return buf.Bytes(), nil
	}
	if err := ical.NewEncoder(&buf).Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEmptyCalendar(buf *bytes.Buffer) {
	for _, line := range []string{
		"BEGIN:" + ical.CompCalendar,
		ical.PropVersion + ":2.0",
		ical.PropProductID + ":" + icalProductID,
		ical.PropCalendarScale + ":GREGORIAN",
		"END:" + ical.CompCalendar,
	} {
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}
}

func floatingProp(name string, t time.Time) *ical.Prop {
	p := ical.NewProp(name)
	p.Value = t.Format(floatingTimeLayout)
	return p
}

// BuildXLSX writes two sheets: the ranking with coverage, and one row per
// response with its selected slots.
func BuildXLSX(snap *respservice.Snapshot) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetRanked)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	if _, err := f.NewSheet(sheetResponses); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	percentStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 9})

	total := len(snap.Responses)

	// Ranked sheet
	writeHeader(f, sheetRanked, headerStyle, "Rank", "Date", "Time", "Count", "Coverage", "Tier", "Participants")
	f.SetColWidth(sheetRanked, "A", "A", 8)
	f.SetColWidth(sheetRanked, "B", "C", 12)
	f.SetColWidth(sheetRanked, "G", "G", 48)
	for i, sc := range snap.Ranked {
		row := i + 2
		coverage := respservice.Coverage(sc.Count, total)
		f.SetCellValue(sheetRanked, cell("A", row), i+1)
		f.SetCellValue(sheetRanked, cell("B", row), sc.Slot.Date)
		f.SetCellValue(sheetRanked, cell("C", row), sc.Slot.Time)
		f.SetCellValue(sheetRanked, cell("D", row), sc.Count)
		f.SetCellValue(sheetRanked, cell("E", row), coverage)
		f.SetCellStyle(sheetRanked, cell("E", row), cell("E", row), percentStyle)
		f.SetCellValue(sheetRanked, cell("F", row), respservice.Tier(coverage))
		f.SetCellValue(sheetRanked, cell("G", row), strings.Join(sc.Participants, ", "))
	}

	// Responses sheet
	writeHeader(f, sheetResponses, headerStyle, "Name", "Email", "Slots", "Submitted", "Updated")
	f.SetColWidth(sheetResponses, "A", "B", 24)
	f.SetColWidth(sheetResponses, "C", "C", 60)
	f.SetColWidth(sheetResponses, "D", "E", 20)
	for i, r := range snap.Responses {
		row := i + 2
		email := ""
		if r.UserEmail != nil {
			email = *r.UserEmail
		}
		f.SetCellValue(sheetResponses, cell("A", row), r.UserName)
		f.SetCellValue(sheetResponses, cell("B", row), email)
		f.SetCellValue(sheetResponses, cell("C", row), strings.Join(r.SelectedSlots.Keys(), ", "))
		f.SetCellValue(sheetResponses, cell("D", row), r.CreatedAt.UTC().Format(time.RFC3339))
		f.SetCellValue(sheetResponses, cell("E", row), r.UpdatedAt.UTC().Format(time.RFC3339))
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeHeader(f *excelize.File, sheet string, style int, titles ...string) {
	for i, title := range titles {
		c := cell(colName(i), 1)
		f.SetCellValue(sheet, c, title)
		f.SetCellStyle(sheet, c, c, style)
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
