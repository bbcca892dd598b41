package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	applog "github.com/andresmejia3/facesignal/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (worker logs)
// This ensures we don't lose critical crash information if a worker dies.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a command and attaches a buffer to its Stderr pipe
// It prepares the command for execution but does not start it.
func NewSafeCommand(name string, args ...string) *SafeCommand {
	cmd := exec.Command(name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// ShowError prints the formatted error box, including any worker logs, without exiting.
func ShowError(context string, err error, s *SafeCommand) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 FACESIGNAL ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}

	// If we have a SafeCommand and it captured logs, print them.
	if s != nil && s.Stderr.Len() > 0 {
		fmt.Fprintf(os.Stderr, "\nWORKER CRASH LOGS:\n%s\n", s.Stderr.String())
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// Die is the unified exit strategy: ShowError, then exit with status 1.
func Die(context string, err error, s *SafeCommand) {
	ShowError(context, err, s)
	os.Exit(1)
}

// --- 2. Video Engine ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// ErrNoVideoStream is returned when ffprobe finds nothing to decode.
var ErrNoVideoStream = errors.New("no video stream found")

type ffprobeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

// GetTotalFrames uses ffprobe to count packets for the progress bar
// It returns 0 if the count fails, allowing the caller to fall back to a spinner.
func GetTotalFrames(path string) int {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		applog.Warn(applog.Fields{"input": path}, "ffprobe not found, progress will be shown without a total")
		return 0
	}

	// 1. Fast Path: Check Container Metadata
	// This is instant but might return "N/A" or be inaccurate for VFR.
	cmdFast := exec.Command("ffprobe", "-v", "error", "-select_streams", "v:0", "-show_entries", "stream=nb_frames", "-of", "json", path)
	if out, err := cmdFast.Output(); err == nil {
		var res ffprobeOutput
		if json.Unmarshal(out, &res) == nil && len(res.Streams) > 0 {
			if count, err := strconv.Atoi(res.Streams[0].NbFrames); err == nil && count > 0 {
				return count
			}
		}
	}

	// 2. Slow Path: Count Packets (Fallback)
	applog.Info(applog.Fields{"input": path}, "frame count missing from metadata, counting packets")
	cmd := exec.Command("ffprobe", "-v", "error", "-select_streams", "v:0", "-count_packets",
		"-show_entries", "stream=nb_read_packets", "-of", "json", path)

	out, err := cmd.Output()
	if err != nil {
		applog.Warn(applog.Fields{"input": path, "error": err.Error()}, "ffprobe packet count failed")
		return 0
	}

	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil || len(res.Streams) == 0 {
		return 0
	}

	count, err := strconv.Atoi(res.Streams[0].NbReadPackets)
	if err != nil {
		return 0
	}
	return count
}

// GetVideoDimensions asks ffprobe for the pixel size of the first video stream. The
// face mesh reports normalized coordinates, so these are the denormalization factors.
func GetVideoDimensions(path string) (width, height int, err error) {
	out, err := exec.Command("ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height", "-of", "json", path).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseDimensions(out)
}

func parseDimensions(out []byte) (int, int, error) {
	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, 0, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	if len(res.Streams) == 0 {
		return 0, 0, ErrNoVideoStream
	}
	s := res.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("ffprobe reported %dx%d", s.Width, s.Height)
	}
	return s.Width, s.Height, nil
}

// SplitJpeg is the custom splitter for bufio.Scanner
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// NewFFmpegCmd creates a standard decoder pipe that writes raw MJPEG frames to Stdout.
// format selects an input demuxer (e.g. "v4l2" for a webcam); empty lets ffmpeg probe.
func NewFFmpegCmd(input, format string) *exec.Cmd {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if format != "" {
		args = append(args, "-f", format)
	}
	// Using -vcodec mjpeg ensures we get JPEGs Go can split
	args = append(args, "-i", input, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
	return exec.Command("ffmpeg", args...)
}

// IsDevice reports whether input names a capture device rather than a file.
func IsDevice(input string) bool {
	return strings.HasPrefix(input, "/dev/")
}

// SourceID creates a deterministic hash for a recording based on its path, size
// and modification time. Devices hash by path only.
func SourceID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	input := path
	if info.Mode().IsRegular() {
		input = fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano())
	}
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}
