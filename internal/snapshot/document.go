// Package snapshot persists the job queue and job history as a versioned
// XML document and provides the stores that hold it.
package snapshot

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"
)

// Version is the document format written by Encode and accepted by Decode.
const Version = 1

// Where a job lived when the snapshot was taken.
const (
	LocationQueue   = "queue"
	LocationHistory = "history"
)

// ErrNoSnapshot is returned by Store.Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Document is the persisted form of the scheduler's jobs.
type Document struct {
	XMLName xml.Name  `xml:"Scheduler"`
	Version int       `xml:"version,attr"`
	SavedAt time.Time `xml:"savedAt,attr"`
	Jobs    []Job     `xml:"Jobs>Job"`
}

// Job is one queued or completed job.
type Job struct {
	ID           string    `xml:"id,attr"`
	Location     string    `xml:"location,attr"`
	State        string    `xml:"State"`
	LogURL       string    `xml:"LogUrl,omitempty"`
	ExperimentID int64     `xml:"ExperimentId"`
	CreatedAt    time.Time `xml:"CreatedAt"`
	Chain        Chain     `xml:"ModelChain"`
	Worker       *Worker   `xml:"Worker,omitempty"`
}

// Chain identifies the model chain a job runs.
type Chain struct {
	ID      string `xml:"id,attr"`
	Name    string `xml:"Name"`
	Version string `xml:"Version"`
}

// Worker is the worker a job was assigned to when saved.
type Worker struct {
	ID      string `xml:"id,attr"`
	Address string `xml:"Address"`
	Name    string `xml:"Name"`
}

// Count returns the number of jobs at the given location.
func (d *Document) Count(location string) int {
	n := 0
	for _, j := range d.Jobs {
		if j.Location == location {
			n++
		}
	}
	return n
}

// Encode writes doc as indented XML with a declaration header.
func Encode(w io.Writer, doc *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// Decode reads a document and checks its version and job locations.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", doc.Version, Version)
	}
	for _, j := range doc.Jobs {
		if j.ID == "" {
			return nil, fmt.Errorf("snapshot job without id")
		}
		if j.Location != LocationQueue && j.Location != LocationHistory {
			return nil, fmt.Errorf("snapshot job %s: unknown location %q", j.ID, j.Location)
		}
	}
	return &doc, nil
}
