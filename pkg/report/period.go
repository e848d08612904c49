package report

import (
	"errors"
	"time"
)

// ErrInvalidDates はfrom/toのいずれかが解釈できない日付だったことを表す。
var ErrInvalidDates = errors.New("invalid_dates")

// LastWeekRange は基準時刻nowから見た前のISO週の範囲を返す。
// ISO週は月曜始まり・日曜終わりで、返される範囲は
// 前週月曜 00:00:00.000 UTC から 前週日曜 23:59:59.999 UTC まで（両端含む）。
func LastWeekRange(now time.Time) (from, to time.Time) {
	now = now.UTC()

	// time.WeekdayはSunday=0なので、月曜=1..日曜=7に読み替える
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	thisMonday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(weekday - 1))

	from = thisMonday.AddDate(0, 0, -7)
	to = thisMonday.Add(-time.Millisecond)
	return from, to
}

// ParseDate はISO-8601形式の日付文字列を解釈する。
// RFC3339形式（時刻付き）と日付のみ（YYYY-MM-DD、UTC扱い）を受け付ける。
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// ResolveRange はレポートパラメータから集計対象の日付範囲を解決する。
// period が "last_week" の場合、またはfrom/toの両方が未指定の場合は
// nowから見た前のISO週を返す。それ以外はfrom/toを解釈して返し、
// いずれかが解釈できない場合はErrInvalidDatesを返す。
func ResolveRange(p Params, now time.Time) (from, to time.Time, err error) {
	if p.Period == "last_week" || (p.From == "" && p.To == "") {
		from, to = LastWeekRange(now)
		return from, to, nil
	}

	from, err = ParseDate(p.From)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDates
	}
	to, err = ParseDate(p.To)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDates
	}
	return from.UTC(), to.UTC(), nil
}
