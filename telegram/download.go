package telegram

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Status is the lifecycle state of a download task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// Task represents an active download.
type Task struct {
	ID              string
	Link            string
	Destination     string
	Filename        string
	Path            string
	MimeType        string
	TotalBytes      int64
	DownloadedBytes int64
	StartTime       time.Time
	EndTime         time.Time

	client       *Client
	threads      int
	ctx          context.Context
	cancelFunc   context.CancelFunc
	mu           sync.RWMutex
	status       Status
	errMsg       string
	speedSamples []speedSample
}

type speedSample struct {
	bytes int64
	time  time.Time
}

// TaskInfo is a point-in-time snapshot of a task, safe to serialize.
type TaskInfo struct {
	ID         string  `json:"id"`
	Link       string  `json:"link"`
	Filename   string  `json:"filename,omitempty"`
	Path       string  `json:"path,omitempty"`
	MimeType   string  `json:"mime_type,omitempty"`
	Downloaded int64   `json:"downloaded"`
	Total      int64   `json:"total"`
	Progress   float64 `json:"progress"`
	Speed      float64 `json:"speed"`
	ETASeconds float64 `json:"eta_seconds"`
	Status     Status  `json:"status"`
	Error      string  `json:"error,omitempty"`
}

// DefaultParallelism suggests a chunk-stream thread count for this machine.
func DefaultParallelism() int {
	parallelism := runtime.NumCPU() * 2
	if parallelism < 4 {
		parallelism = 4
	}
	if parallelism > 16 {
		parallelism = 16
	}
	return parallelism
}

// StartDownload initiates a parallel download of the media in the linked
// message and returns immediately; progress is tracked on the task.
func (c *Client) StartDownload(link, destination string, threads int) *Task {
	taskCtx, cancel := context.WithCancel(c.runCtx)

	if threads <= 0 {
		threads = DefaultParallelism()
	}

	task := &Task{
		ID:          generateTaskID(),
		Link:        link,
		Destination: destination,
		client:      c,
		threads:     threads,
		ctx:         taskCtx,
		cancelFunc:  cancel,
		status:      StatusPending,
		StartTime:   time.Now(),
	}

	go task.execute()

	return task
}

// execute performs the actual download with parallel chunking.
func (t *Task) execute() {
	t.setStatus(StatusDownloading)

	go t.trackSpeed()

	linkInfo, err := ParseTelegramLink(t.Link)
	if err != nil {
		t.fail(errors.Wrap(err, "failed to parse link"))
		return
	}

	log := logrus.WithField("task", t.ID)
	log.Infof("parsed link: channel=%d username=%s message=%d private=%v",
		linkInfo.ChannelID, linkInfo.Username, linkInfo.MessageID, linkInfo.IsPrivate)

	peer, err := t.resolvePeer(linkInfo)
	if err != nil {
		t.fail(errors.Wrap(err, "failed to resolve channel"))
		return
	}

	fileLocation, filename, size, err := t.resolveFileLocation(peer, linkInfo.MessageID)
	if err != nil {
		t.fail(errors.Wrap(err, "failed to resolve file"))
		return
	}

	t.mu.Lock()
	t.Filename = filename
	t.mu.Unlock()
	atomic.StoreInt64(&t.TotalBytes, size)
	log.Infof("file %s, %d bytes", filename, size)

	destPath, err := expandPath(t.Destination)
	if err != nil {
		t.fail(err)
		return
	}
	if err := os.MkdirAll(destPath, 0o755); err != nil {
		t.fail(errors.Wrap(err, "failed to create destination"))
		return
	}

	filePath := filepath.Join(destPath, filename)
	t.mu.Lock()
	t.Path = filePath
	t.mu.Unlock()

	// Same-size file on disk means a previous run already finished.
	if info, err := os.Stat(filePath); err == nil && info.Size() == size {
		atomic.StoreInt64(&t.DownloadedBytes, size)
		t.sniffType(filePath)
		t.complete()
		log.Infof("file already exists: %s", filePath)
		return
	}

	file, err := os.Create(filePath)
	if err != nil {
		t.fail(errors.Wrap(err, "failed to create file"))
		return
	}

	log.Infof("downloading with %d threads", t.threads)

	dl := downloader.NewDownloader()
	_, err = dl.Download(t.client.API(), fileLocation).
		WithThreads(t.threads).
		Stream(t.ctx, &progressWriter{writer: file, task: t})

	if err != nil {
		file.Close()
		if t.ctx.Err() == context.Canceled {
			t.setStatus(StatusCancelled)
			os.Remove(filePath)
		} else {
			t.fail(errors.Wrap(err, "download failed"))
		}
		return
	}
	if err := file.Close(); err != nil {
		t.fail(errors.Wrap(err, "failed to close file"))
		return
	}

	atomic.StoreInt64(&t.DownloadedBytes, atomic.LoadInt64(&t.TotalBytes))
	t.sniffType(filePath)
	t.complete()
	log.Infof("download completed: %s", filePath)
}

// resolvePeer resolves the channel, retrying transient failures.
func (t *Task) resolvePeer(linkInfo *LinkInfo) (*tg.InputPeerChannel, error) {
	ctx, cancel := context.WithTimeout(t.ctx, 30*time.Second)
	defer cancel()

	var peer *tg.InputPeerChannel
	err := retry.Do(
		func() error {
			var rerr error
			if linkInfo.IsPrivate {
				peer, rerr = t.client.GetChannelPeer(ctx, linkInfo.ChannelID)
			} else {
				peer, rerr = t.client.ResolveUsername(ctx, linkInfo.Username)
			}
			return rerr
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	return peer, err
}

// resolveFileLocation fetches the message and extracts the file location.
func (t *Task) resolveFileLocation(peer *tg.InputPeerChannel, messageID int) (tg.InputFileLocationClass, string, int64, error) {
	ctx, cancel := context.WithTimeout(t.ctx, 30*time.Second)
	defer cancel()

	var messages tg.MessagesMessagesClass
	err := retry.Do(
		func() error {
			var rerr error
			messages, rerr = t.client.API().ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
				Channel: &tg.InputChannel{
					ChannelID:  peer.ChannelID,
					AccessHash: peer.AccessHash,
				},
				ID: []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
			})
			return rerr
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, "", 0, errors.Wrap(err, "failed to fetch message")
	}

	var msgList []tg.MessageClass
	switch m := messages.(type) {
	case *tg.MessagesChannelMessages:
		msgList = m.Messages
	case *tg.MessagesMessages:
		msgList = m.Messages
	case *tg.MessagesMessagesSlice:
		msgList = m.Messages
	}
	if len(msgList) == 0 {
		return nil, "", 0, errors.New("no messages found")
	}

	msg, ok := msgList[0].(*tg.Message)
	if !ok {
		return nil, "", 0, errors.Errorf("unsupported message type: %T", msgList[0])
	}
	if msg.Media == nil {
		return nil, "", 0, errors.New("message has no media")
	}

	return extractFileInfo(msg.Media)
}

// extractFileInfo extracts the file location, name and size from media.
func extractFileInfo(media tg.MessageMediaClass) (tg.InputFileLocationClass, string, int64, error) {
	switch m := media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, "", 0, errors.New("invalid document")
		}

		filename := "download.bin"
		for _, attr := range doc.Attributes {
			if fileAttr, ok := attr.(*tg.DocumentAttributeFilename); ok {
				filename = fileAttr.FileName
				break
			}
		}

		location := &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}
		return location, filename, doc.Size, nil

	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, "", 0, errors.New("invalid photo")
		}

		var largest *tg.PhotoSize
		var maxSize int64
		for _, size := range photo.Sizes {
			if ps, ok := size.(*tg.PhotoSize); ok && int64(ps.Size) > maxSize {
				maxSize = int64(ps.Size)
				largest = ps
			}
		}
		if largest == nil {
			return nil, "", 0, errors.New("no photo sizes found")
		}

		location := &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     largest.Type,
		}
		return location, fmt.Sprintf("photo_%d.jpg", photo.ID), maxSize, nil

	default:
		return nil, "", 0, errors.Errorf("unsupported media type: %T", media)
	}
}

// sniffType detects the finished file's MIME type from its magic bytes.
func (t *Task) sniffType(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return
	}
	t.mu.Lock()
	t.MimeType = kind.MIME.Value
	t.mu.Unlock()
}

// progressWriter wraps an io.Writer to track bytes written.
type progressWriter struct {
	writer io.Writer
	task   *Task
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	if n > 0 {
		atomic.AddInt64(&pw.task.DownloadedBytes, int64(n))
	}
	return n, err
}

// trackSpeed samples throughput every 500ms over a sliding window.
func (t *Task) trackSpeed() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastBytes int64

	for {
		select {
		case <-ticker.C:
			currentBytes := atomic.LoadInt64(&t.DownloadedBytes)
			now := time.Now()

			t.mu.Lock()
			t.speedSamples = append(t.speedSamples, speedSample{
				bytes: currentBytes - lastBytes,
				time:  now,
			})
			if len(t.speedSamples) > 10 {
				t.speedSamples = t.speedSamples[len(t.speedSamples)-10:]
			}
			t.mu.Unlock()

			lastBytes = currentBytes

		case <-t.ctx.Done():
			return
		}
	}
}

// GetProgress returns download progress percentage.
func (t *Task) GetProgress() float64 {
	total := atomic.LoadInt64(&t.TotalBytes)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&t.DownloadedBytes)) / float64(total) * 100
}

// GetSpeed returns current download speed in bytes/second.
func (t *Task) GetSpeed() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.speedSamples) < 2 {
		return 0
	}

	var totalBytes int64
	var totalTime time.Duration
	for i := 1; i < len(t.speedSamples); i++ {
		totalBytes += t.speedSamples[i].bytes
		totalTime += t.speedSamples[i].time.Sub(t.speedSamples[i-1].time)
	}
	if totalTime == 0 {
		return 0
	}
	return float64(totalBytes) / totalTime.Seconds()
}

// GetETA returns the estimated time to completion.
func (t *Task) GetETA() time.Duration {
	speed := t.GetSpeed()
	if speed == 0 {
		return 0
	}
	remaining := atomic.LoadInt64(&t.TotalBytes) - atomic.LoadInt64(&t.DownloadedBytes)
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Cancel stops the download and removes the partial file.
func (t *Task) Cancel() {
	t.cancelFunc()
	t.setStatus(StatusCancelled)
}

// GetStatus returns the current lifecycle state.
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// GetError returns the failure message, if any.
func (t *Task) GetError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errMsg
}

// Info returns a serializable snapshot of the task.
func (t *Task) Info() TaskInfo {
	t.mu.RLock()
	filename := t.Filename
	path := t.Path
	mime := t.MimeType
	status := t.status
	errMsg := t.errMsg
	t.mu.RUnlock()

	return TaskInfo{
		ID:         t.ID,
		Link:       t.Link,
		Filename:   filename,
		Path:       path,
		MimeType:   mime,
		Downloaded: atomic.LoadInt64(&t.DownloadedBytes),
		Total:      atomic.LoadInt64(&t.TotalBytes),
		Progress:   t.GetProgress(),
		Speed:      t.GetSpeed(),
		ETASeconds: t.GetETA().Seconds(),
		Status:     status,
		Error:      errMsg,
	}
}

func (t *Task) setStatus(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

func (t *Task) complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusCompleted
	t.EndTime = time.Now()
}

func (t *Task) fail(err error) {
	logrus.WithField("task", t.ID).Errorf("download failed: %v", err)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusError
	t.errMsg = err.Error()
	t.EndTime = time.Now()
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "" {
		path = "~/Downloads/TeleTurbo"
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, path[1:]), nil
}
