package calendar

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// Размеры и отступы
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 130
	dayPaddingX      = 8
	minSlotHeight    = 8.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	daysInWeek       = 7
	hourPadding      = 1
	// учебный день 08:20-21:00
	defaultFirstHour = 8
	defaultLastHour  = 21
)

// Размеры шрифтов
const (
	titleFontSize     = 25.0
	dayFontSize       = 24.0
	hourLabelFontSize = 16.0
	slotFontSize      = 15.0
	legendFontSize    = 12.0
)

var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 125}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{220, 220, 220, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	slotFreeColor       = color.RGBA{133, 193, 85, 220}
	slotBookedColor     = color.RGBA{255, 182, 193, 255}
	slotDefaultColor    = color.RGBA{220, 220, 220, 200}
	slotTextColor       = color.RGBA{20, 24, 28, 230}
	slotBookedTextColor = color.RGBA{120, 40, 50, 255}
	slotShadowColor     = color.RGBA{0, 0, 0, 20}
	legendItemColor     = color.RGBA{70, 74, 78, 220}
)

// WeekView неделя слотов одного инструктора для отрисовки
type WeekView struct {
	InstructorID int64
	// любой день недели; неделя считается с понедельника
	Date  time.Time
	Slots []*model.Slot
	Loc   *time.Location
	Now   time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

type fontStyle int

const (
	fontRegular fontStyle = iota
	fontBold
)

var (
	fontsMu     sync.Mutex
	cachedFonts = make(map[fontStyle]*opentype.Font)
)

// WeekStart понедельник недели, в которую попадает date
func WeekStart(date time.Time) time.Time {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// RenderWeek рисует PNG с неделей слотов: свободные зелёные, занятые розовые
func RenderWeek(view WeekView) ([]byte, error) {
	loc := view.Loc
	if loc == nil {
		loc = time.UTC
	}
	start := WeekStart(view.Date.In(loc))
	now := view.Now.In(loc)

	slotsByDay := groupSlotsByDay(view.Slots, loc)
	hours := calculateHourRange(view.Slots, loc)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / daysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, start, view.InstructorID)
	drawHourLabels(dc, hours, cellHeight)

	highlightToday := !now.IsZero() && !now.Before(start) && now.Before(start.AddDate(0, 0, daysInWeek))
	for i := 0; i < daysInWeek; i++ {
		date := start.AddDate(0, 0, i)
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i, highlightToday && sameDay(date, now))
		drawDayHeader(dc, date, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, slot := range slotsByDay[date.Format("2006-01-02")] {
			drawSlot(dc, slot, loc, x, y, dayWidth, hours, cellHeight)
		}
	}

	if highlightToday {
		drawCurrentTimeLine(dc, now, hours, cellHeight, dayWidth)
	}
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// setFont opentype-шрифт Go нужного размера, basicfont если разбор не удался
func setFont(dc *gg.Context, size float64, style fontStyle) {
	fontsMu.Lock()
	parsed, ok := cachedFonts[style]
	if !ok {
		data := goregular.TTF
		if style == fontBold {
			data = gobold.TTF
		}
		var err error
		parsed, err = opentype.Parse(data)
		if err != nil {
			parsed = nil
		}
		cachedFonts[style] = parsed
	}
	fontsMu.Unlock()

	if parsed != nil {
		face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

func groupSlotsByDay(slots []*model.Slot, loc *time.Location) map[string][]*model.Slot {
	byDay := make(map[string][]*model.Slot)
	for _, slot := range slots {
		key := slot.StartTime.In(loc).Format("2006-01-02")
		byDay[key] = append(byDay[key], slot)
	}
	return byDay
}

// calculateHourRange часы по слотам недели, без слотов весь учебный день
func calculateHourRange(slots []*model.Slot, loc *time.Location) hourRange {
	first, last := 24, 0
	for _, slot := range slots {
		start := slot.StartTime.In(loc)
		end := slot.EndTime.In(loc)
		endHour := end.Hour()
		if end.Minute() > 0 {
			endHour++
		}
		first = min(first, start.Hour())
		last = max(last, endHour)
	}
	if first == 24 {
		first, last = defaultFirstHour, defaultLastHour
	}

	first = max(first-hourPadding, 0)
	last = min(last+hourPadding, 24)
	return hourRange{start: first, end: last, total: last - first}
}

func drawHeader(dc *gg.Context, weekStart time.Time, instructorID int64) {
	weekEnd := weekStart.AddDate(0, 0, daysInWeek-1)

	title := monthName(weekStart.Month())
	if weekEnd.Month() != weekStart.Month() {
		title += " - " + monthName(weekEnd.Month())
	}
	title = fmt.Sprintf("%s %d, инструктор %d", title, weekEnd.Year(), instructorID)

	setFont(dc, titleFontSize, fontBold)
	dc.SetColor(textColor)
	_, h := dc.MeasureString(title)
	dc.DrawStringAnchored(title, float64(leftLabelsWidth), float64(headerHeight)/8+h/2, 0, 0)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	setFont(dc, hourLabelFontSize, fontRegular)
	dc.SetColor(hourLabelColor)

	for i := 0; i <= hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hours.start+i), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int, isToday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	setFont(dc, dayFontSize, fontBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+float64(dayWidth)/2, y, 0.5, -1)
	dc.DrawStringAnchored(weekdayShort(date.Weekday()), x+float64(dayWidth)/2, y, 0.5, -0.2)
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)

	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawSlot(dc *gg.Context, slot *model.Slot, loc *time.Location, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	start := slot.StartTime.In(loc)
	end := slot.EndTime.In(loc)
	startHour := float64(start.Hour()) + float64(start.Minute())/60.0
	endHour := float64(end.Hour()) + float64(end.Minute())/60.0

	slotY := y + (startHour-float64(hours.start))*cellHeight
	slotHeight := max((endHour-startHour)*cellHeight, minSlotHeight)
	slotWidth := float64(dayWidth) - float64(dayPaddingX*2)
	left := x + float64(dayPaddingX)

	fill := slotColor(slot.Status)

	// тень
	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(left+shadowOffset, slotY+2+shadowOffset, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(left, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(darken(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(left, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Stroke()

	txtColor := slotTextColor
	if slot.Status == model.SlotStatusBooked {
		txtColor = slotBookedTextColor
	}

	setFont(dc, slotFontSize, fontRegular)
	dc.SetColor(txtColor)
	txtX := left + 8
	txtY := slotY + 18
	dc.DrawStringAnchored(start.Format("15:04")+"-"+end.Format("15:04"), txtX, txtY, 0, 0)

	if slot.Status == model.SlotStatusBooked && slot.StudentID != nil && slotHeight > 25 {
		dc.DrawStringAnchored(fmt.Sprintf("студент %d", *slot.StudentID), txtX, txtY+16, 0, 0)
	}
}

func slotColor(status model.SlotStatus) color.RGBA {
	switch status {
	case model.SlotStatusFree:
		return slotFreeColor
	case model.SlotStatusBooked:
		return slotBookedColor
	default:
		return slotDefaultColor
	}
}

func darken(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func drawCurrentTimeLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	current := float64(now.Hour()) + float64(now.Minute())/60.0
	if current < float64(hours.start) || current > float64(hours.end) {
		return
	}

	lineY := float64(headerHeight) + (current-float64(hours.start))*cellHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2.0)
	dc.DrawLine(float64(leftLabelsWidth), lineY, float64(leftLabelsWidth+daysInWeek*dayWidth), lineY)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	legendX := float64(leftLabelsWidth + daysInWeek*dayWidth + 10)
	legendY := float64(imageHeight) - 80.0

	items := []struct {
		label string
		clr   color.Color
	}{
		{"Свободно", slotFreeColor},
		{"Занято", slotBookedColor},
	}

	const boxW, boxH = 20.0, 14.0
	setFont(dc, legendFontSize, fontRegular)
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(legendX, legendY, boxW, boxH, 3)
		dc.Fill()

		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.label, legendX+boxW+8, legendY+boxH/2+1, 0, 0.2)
		legendY += boxH + 14
	}
}

func weekdayShort(weekday time.Weekday) string {
	return [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}[weekday]
}

func monthName(month time.Month) string {
	return [...]string{
		"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
		"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
	}[month-1]
}
