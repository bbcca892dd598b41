package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/config"
	applog "github.com/andresmejia3/facesignal/internal/log"
	"github.com/andresmejia3/facesignal/internal/session"
	"github.com/andresmejia3/facesignal/internal/stream"
	"github.com/andresmejia3/facesignal/internal/types"
	"github.com/andresmejia3/facesignal/internal/utils"
	"github.com/andresmejia3/facesignal/internal/worker"
)

const megabyte = 1024 * 1024

type watchOptions struct {
	Options
	NthFrame        int
	NumEngines      int
	InputFormat     string
	WorkerCommand   string
	RecordLandmarks string
}

var watchOpts watchOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run face-mesh inference on a video or camera and classify it live",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runWatch(cmd.Context(), Cfg, watchOpts)
	},
}

func init() {
	addSinkFlags(watchCmd, &watchOpts.Options)
	watchCmd.Flags().StringVarP(&watchOpts.InputPath, "input", "i", "", "Path to video, or a capture device such as /dev/video0")
	watchCmd.Flags().IntVarP(&watchOpts.NthFrame, "nth-frame", "n", 1, "Run inference on every nth frame")
	watchCmd.Flags().IntVarP(&watchOpts.NumEngines, "engines", "e", 1, "Number of parallel inference workers")
	watchCmd.Flags().StringVarP(&watchOpts.InputFormat, "format", "f", "", `ffmpeg input format (default "v4l2" for /dev/ devices)`)
	watchCmd.Flags().StringVar(&watchOpts.WorkerCommand, "worker-cmd", strings.Join(worker.DefaultCommand, " "), "Command that starts an inference worker")
	watchCmd.Flags().StringVar(&watchOpts.RecordLandmarks, "record-landmarks", "", "Also write every processed frame's landmarks to this JSONL file")

	watchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(watchCmd)
}

// Buffer pool to reduce GC pressure while decoding
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

// runWatch orchestrates a live run: frame size discovery, worker pool, FFmpeg
// streaming, the ordered session and progress tracking.
func runWatch(ctx context.Context, cfg *config.Config, opts watchOptions) error {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := validateWatchFlags(&opts); err != nil {
		utils.ShowError("Invalid flags", err, nil)
		return err
	}
	device := utils.IsDevice(opts.InputPath)

	// 1. Frame size: flags win, then ffprobe, then config
	if opts.Width == 0 || opts.Height == 0 {
		w, h, err := utils.GetVideoDimensions(opts.InputPath)
		if err != nil {
			applog.Warn(applog.Fields{"input": opts.InputPath, "error": err.Error()}, "could not probe frame size, using configured size")
		} else {
			if opts.Width == 0 {
				opts.Width = float64(w)
			}
			if opts.Height == 0 {
				opts.Height = float64(h)
			}
		}
	}

	// 2. Session ID: a file gets a deterministic ID so re-runs replace their history
	sessOpts := session.Options{Reorder: true, Start: opts.NthFrame, Step: opts.NthFrame}
	if opts.SessionID == "" && !device {
		id, err := utils.SourceID(opts.InputPath)
		if err != nil {
			utils.ShowError("Failed to fingerprint input", err, nil)
			return err
		}
		sessOpts.ID = id[:16]
	}

	var landmarkOut *os.File
	if opts.RecordLandmarks != "" {
		f, err := os.Create(opts.RecordLandmarks)
		if err != nil {
			utils.ShowError("Unable to create landmark file", err, nil)
			return err
		}
		defer f.Close()
		landmarkOut = f
		lw := stream.NewWriter(bufio.NewWriter(f))
		sessOpts.OnFrame = func(frame types.LandmarkFrame) {
			if err := lw.Write(frame); err != nil {
				applog.Error(applog.Fields{"frame": frame.Seq, "error": err.Error()}, "failed to record landmarks")
			}
		}
		defer func() {
			if err := lw.Flush(); err != nil {
				applog.Error(applog.Fields{"error": err.Error()}, "failed to flush landmark file")
			}
		}()
	}

	p, err := buildPipeline(ctx, cfg, os.Stdout, opts.Options, sessOpts)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "📼 Watching %s (%gx%g)\n", opts.InputPath, p.width, p.height)
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Worker Engines...\n", opts.NumEngines)
	if landmarkOut != nil {
		fmt.Fprintf(os.Stderr, "📝 Recording landmarks to %s\n", landmarkOut.Name())
	}

	// 3. Progress: files get a bar, devices a spinner
	total := -1
	if !device {
		if n := utils.GetTotalFrames(opts.InputPath); n > 0 {
			total = n
		}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("👁️  Watching"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan types.LandmarkFrame, opts.NumEngines*2)
	var wg sync.WaitGroup

	// 4. Start the session (consumer)
	// Must run concurrently to prevent deadlock on resultsChan
	type runResult struct {
		stats session.Stats
		err   error
	}
	runDone := make(chan runResult, 1)
	go func() {
		stats, err := p.session.Run(ctx, resultsChan)
		runDone <- runResult{stats, err}
	}()

	// 5. Spawn the Engine Pool
	command := strings.Fields(opts.WorkerCommand)
	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			startWorker(ctx, workerID, command, taskChan, resultsChan)
		}(i)
	}

	// 6. Start FFmpeg
	ffmpeg := utils.NewFFmpegCmd(opts.InputPath, opts.InputFormat)

	var stderrBuf bytes.Buffer
	ffmpeg.Stderr = &stderrBuf

	ffmpegOut, err := ffmpeg.StdoutPipe()
	if err != nil {
		utils.Die("Failed to create FFmpeg stdout pipe", err, nil)
	}
	defer ffmpegOut.Close() // Ensure pipe is closed to prevent leaks/zombies

	if err := ffmpeg.Start(); err != nil {
		utils.Die("Failed to start FFmpeg", err, nil)
	}

	// 7. Frame Splitter & Nth-Frame Logic
	scanner := bufio.NewScanner(ffmpegOut)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	totalFrames := 0
	sentFrames := 0
	interrupted := false
scan:
	for scanner.Scan() {
		totalFrames++
		bar.Add(1)

		if totalFrames%opts.NthFrame != 0 {
			continue
		}

		buf := frameBufferPool.Get().([]byte)
		if cap(buf) < len(scanner.Bytes()) {
			buf = make([]byte, len(scanner.Bytes()))
		}
		buf = buf[:len(scanner.Bytes())]
		copy(buf, scanner.Bytes())

		select {
		case taskChan <- types.FrameTask{Index: totalFrames, Data: buf}:
			sentFrames++
		case <-ctx.Done():
			interrupted = true
			break scan
		}
	}

	// 8. Cleanup & Completion Check
	if interrupted {
		ffmpeg.Process.Kill()
		ffmpeg.Wait()
	} else {
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			utils.Die("Frame scanner failed", err, nil)
		}
		if err := ffmpeg.Wait(); err != nil && ctx.Err() == nil {
			if stderrBuf.Len() > 0 {
				fmt.Fprintf(os.Stderr, "\nFFmpeg Logs:\n%s\n", stderrBuf.String())
			}
			utils.Die("FFmpeg execution failed", err, nil)
		}
	}

	close(taskChan)
	wg.Wait()
	close(resultsChan)

	res := <-runDone
	bar.Finish()
	fmt.Fprintf(os.Stderr, "\n🏁 Watch Complete. Processed %d keyframes out of %d total.\n", sentFrames, totalFrames)
	p.finish(res.stats)

	if res.err != nil && !errors.Is(res.err, context.Canceled) {
		return res.err
	}
	return nil
}

// startWorker manages the lifecycle of a single inference process.
// It reads tasks from the channel, sends them to the worker, and forwards landmarks to the session.
func startWorker(ctx context.Context, id int, command []string, tasks <-chan types.FrameTask, results chan<- types.LandmarkFrame) {
	w, err := worker.New(id, command)
	if err != nil {
		utils.Die("Worker startup failed", err, nil)
	}
	defer w.Close()

	for task := range tasks {
		faces, err := w.ProcessFrame(task.Data)

		// Return buffer to pool immediately after sending
		frameBufferPool.Put(task.Data[:0])

		var inferErr *worker.InferenceError
		if errors.As(err, &inferErr) {
			applog.Warn(applog.Fields{"worker": id, "frame": task.Index, "error": inferErr.Msg}, "inference failed for frame")
			// Send empty result to keep the session's ordering moving
			faces = nil
		} else if err != nil {
			// DRAIN: Wait for process to exit and capture final stderr logs
			w.Close()
			utils.Die("Inference worker crashed", err, w.Cmd)
		}

		select {
		case results <- types.LandmarkFrame{Seq: task.Index, Faces: faces, Timestamp: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}

// validateWatchFlags ensures all CLI arguments are valid before starting heavy processes.
func validateWatchFlags(opts *watchOptions) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input does not exist: %w", err)
		}
		return fmt.Errorf("unable to access input: %w", err)
	}
	if info.IsDir() {
		return errors.New("input path is a directory, expected a video file or device")
	}
	if opts.NthFrame < 1 {
		return fmt.Errorf("invalid nth-frame interval: must be >= 1, got %d", opts.NthFrame)
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if len(strings.Fields(opts.WorkerCommand)) == 0 {
		return errors.New("worker command is empty")
	}
	if opts.InputFormat == "" && utils.IsDevice(opts.InputPath) {
		opts.InputFormat = "v4l2"
	}
	return nil
}
