package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liuwen-dev/studyforge/internal/library"
	"github.com/liuwen-dev/studyforge/internal/parser"
)

// process runs one job to completion and records every state change on
// the task store.
func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("task_id", job.TaskID, "doc_id", job.DocID, "source", job.SourceRef())

	var (
		eng *library.Engine
		res Result
		err error
	)
	switch job.Source {
	case SourceURL:
		eng, res, err = o.processURL(ctx, job)
	case SourceFile:
		eng, res, err = o.processFile(ctx, job)
	default:
		err = fmt.Errorf("unknown source type %q", job.Source)
	}

	if err != nil {
		log.Error("job failed", "error", err)
		o.tasks.Fail(job.TaskID, err.Error())
		job.removeWorkDir()
		return
	}

	res.DocumentTree = eng.Outline()
	o.tasks.Complete(job.TaskID, res)
	job.removeIntermediates()
	log.Info("job complete", "doc_name", res.DocName, "doc_type", res.DocType)
}

func (o *Orchestrator) processURL(ctx context.Context, job *Job) (*library.Engine, Result, error) {
	res := Result{DocID: job.DocID, DocType: "video", SourceURL: job.URL}

	o.tasks.UpdateProgress(job.TaskID, 10, "downloading")
	videoPath, title, err := o.downloader.Download(ctx, job.TaskID, job.URL)
	if err != nil {
		return nil, res, fmt.Errorf("download: %w", err)
	}
	job.videoPath = videoPath
	job.workDir = filepath.Dir(videoPath)
	res.DocName = title
	if job.Title != "" {
		res.DocName = job.Title
	}

	o.tasks.UpdateProgress(job.TaskID, 25, "extracting_audio")
	audioPath, err := o.extractor.ExtractAudio(ctx, videoPath)
	if err != nil {
		return nil, res, fmt.Errorf("extract audio: %w", err)
	}
	job.audioPath = audioPath

	o.tasks.UpdateProgress(job.TaskID, 40, "transcribing")
	transcript, err := o.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, res, fmt.Errorf("transcribe: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, res, fmt.Errorf("transcription produced no text for %s", job.URL)
	}

	// The transcript is written to disk so a failed build can be
	// inspected; it is removed with the other intermediates.
	job.transcriptPath = filepath.Join(job.workDir, job.TaskID+".txt")
	if err := os.WriteFile(job.transcriptPath, []byte(transcript), 0o644); err != nil {
		return nil, res, fmt.Errorf("write transcript: %w", err)
	}

	o.tasks.UpdateProgress(job.TaskID, 60, "building_tree")
	segments, err := parser.ParseTranscript(strings.NewReader(transcript))
	if err != nil {
		return nil, res, fmt.Errorf("parse transcript: %w", err)
	}
	eng, err := o.lib.BuildFromSegments(ctx, job.DocID, segments)
	if err != nil {
		return nil, res, err
	}

	o.tasks.UpdateProgress(job.TaskID, 85, "finalizing")
	return eng, res, nil
}

func (o *Orchestrator) processFile(ctx context.Context, job *Job) (*library.Engine, Result, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(job.Filename)), ".")
	res := Result{DocID: job.DocID, DocType: ext}

	o.tasks.UpdateProgress(job.TaskID, 10, "parsing")
	p, err := o.parsers.ForFile(job.Filename)
	if err != nil {
		return nil, res, err
	}
	doc, err := p.Parse(ctx, bytes.NewReader(job.Data), job.Filename)
	if err != nil {
		return nil, res, fmt.Errorf("parse %s: %w", job.Filename, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, res, fmt.Errorf("no extractable content in %s", job.Filename)
	}
	res.DocName = doc.Title
	if job.Title != "" {
		res.DocName = job.Title
	}

	o.tasks.UpdateProgress(job.TaskID, 20, "parsed")

	o.tasks.UpdateProgress(job.TaskID, 60, "building_tree")
	eng, err := o.lib.BuildFromText(ctx, job.DocID, doc.Text)
	if err != nil {
		return nil, res, err
	}
	return eng, res, nil
}

// removeIntermediates deletes the downloaded video, the extracted
// audio and the transcript after a successful run.
func (j *Job) removeIntermediates() {
	for _, p := range []string{j.videoPath, j.audioPath, j.transcriptPath} {
		if p != "" {
			os.Remove(p)
		}
	}
}

// removeWorkDir deletes the whole task directory after a failure.
func (j *Job) removeWorkDir() {
	if j.workDir != "" {
		os.RemoveAll(j.workDir)
	}
}
