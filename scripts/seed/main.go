// Command seed loads a demo roster into a running API instance. Intended for
// local development against an empty database.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type student struct {
	SNumber          string `json:"s_number"`
	LegalName        string `json:"legal_name"`
	AliasName        string `json:"alias_name,omitempty"`
	UseAliasFlag     bool   `json:"use_alias_flag"`
	BirthDate        string `json:"birth_date"`
	Gender           string `json:"gender"`
	Address          string `json:"address"`
	Grade            int    `json:"grade"`
	ClassLabel       string `json:"class_label"`
	AttendanceNumber int    `json:"attendance_number"`
}

func main() {
	base := flag.String("base", "http://localhost:8080/api/v1", "API base URL")
	file := flag.String("file", "", "JSON file with an array of students (defaults to a built-in roster)")
	flag.Parse()

	roster := builtinRoster()
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read roster file: %v", err)
		}
		roster = nil
		if err := json.Unmarshal(data, &roster); err != nil {
			log.Fatalf("parse roster file: %v", err)
		}
	}

	client := &http.Client{Timeout: 10 * time.Second}
	created, skipped := 0, 0
	for _, s := range roster {
		status, err := postStudent(client, *base, s)
		switch {
		case err != nil:
			log.Fatalf("seed %s: %v", s.SNumber, err)
		case status == http.StatusCreated:
			created++
		case status == http.StatusConflict:
			skipped++
		default:
			log.Fatalf("seed %s: unexpected status %d", s.SNumber, status)
		}
	}
	fmt.Printf("seeded %d students, %d already present\n", created, skipped)
}

func postStudent(client *http.Client, base string, s student) (int, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(base+"/students", "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func builtinRoster() []student {
	birth := func(year, month, day int) string {
		return fmt.Sprintf("%04d-%02d-%02dT00:00:00Z", year, month, day)
	}
	return []student{
		{SNumber: "S-0001", LegalName: "佐藤 花子", Gender: "F", Address: "名古屋市東区1-1", BirthDate: birth(2010, 6, 1), Grade: 1, ClassLabel: "A", AttendanceNumber: 1},
		{SNumber: "S-0002", LegalName: "鈴木 太郎", Gender: "M", Address: "名古屋市西区2-2", BirthDate: birth(2010, 4, 12), Grade: 1, ClassLabel: "A", AttendanceNumber: 2},
		{SNumber: "S-0003", LegalName: "高橋 美咲", AliasName: "高橋 みさき", UseAliasFlag: true, Gender: "F", Address: "名古屋市南区3-3", BirthDate: birth(2009, 11, 3), Grade: 2, ClassLabel: "B", AttendanceNumber: 1},
		{SNumber: "S-0004", LegalName: "田中 健一", Gender: "M", Address: "名古屋市北区4-4", BirthDate: birth(2008, 2, 20), Grade: 3, ClassLabel: "A", AttendanceNumber: 5},
	}
}
