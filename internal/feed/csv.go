package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// ErrInvalidBoolField is returned when a calendar weekday flag is neither 0
// nor 1.
var ErrInvalidBoolField = errors.New("invalid boolean field supplied")

type tripRow struct {
	TripID    string `csv:"trip_id"`
	ServiceID string `csv:"service_id"`
}

type stopRow struct {
	StopID        string `csv:"stop_id"`
	StopName      string `csv:"stop_name"`
	ParentStation string `csv:"parent_station"`
}

type stopTimeRow struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

type calendarRow struct {
	ServiceID string  `csv:"service_id"`
	Monday    csvBool `csv:"monday"`
	Tuesday   csvBool `csv:"tuesday"`
	Wednesday csvBool `csv:"wednesday"`
	Thursday  csvBool `csv:"thursday"`
	Friday    csvBool `csv:"friday"`
	Saturday  csvBool `csv:"saturday"`
	Sunday    csvBool `csv:"sunday"`
	StartDate string  `csv:"start_date"`
	EndDate   string  `csv:"end_date"`
}

func (r calendarRow) flags() [7]bool {
	return [7]bool{
		bool(r.Monday), bool(r.Tuesday), bool(r.Wednesday), bool(r.Thursday),
		bool(r.Friday), bool(r.Saturday), bool(r.Sunday),
	}
}

type csvBool bool

func (b *csvBool) UnmarshalCSV(csv string) error {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		*b = false
		return nil
	}
	val, err := strconv.ParseInt(csv, 10, 32)
	if err != nil {
		return err
	}
	switch val {
	case 1:
		*b = true
	case 0:
		*b = false
	default:
		return ErrInvalidBoolField
	}
	return nil
}

// gtfsCSVReader tolerates rows shorter than the header, since GTFS columns
// are optional, and strips the UTF-8 byte order mark some producers emit.
func gtfsCSVReader(in io.Reader) gocsv.CSVReader {
	br := bufio.NewReader(in)
	if r, _, err := br.ReadRune(); err == nil && r != '\ufeff' {
		_ = br.UnreadRune()
	}
	csvReader := csv.NewReader(br)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true
	return csvReader
}
