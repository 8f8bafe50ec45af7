package ffmpeg_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reeler/internal/services"
	"reeler/internal/services/ffmpeg"
	"reeler/internal/testsupport"
)

type stubProcess struct {
	lines   []string
	code    int
	onStart func()
}

func (p *stubProcess) Lines() <-chan string {
	if p.onStart != nil {
		p.onStart()
	}
	ch := make(chan string, len(p.lines))
	for _, line := range p.lines {
		ch <- line
	}
	close(ch)
	return ch
}

func (p *stubProcess) Wait() (int, error) { return p.code, nil }
func (p *stubProcess) Terminate()         {}

type stubLauncher struct {
	procs []ffmpeg.Process
	calls [][]string
}

func (s *stubLauncher) Start(dir, name string, args ...string) (ffmpeg.Process, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	idx := len(s.calls) - 1
	if idx >= len(s.procs) {
		idx = len(s.procs) - 1
	}
	return s.procs[idx], nil
}

func newClient(t *testing.T, launcher ffmpeg.Launcher) *ffmpeg.Client {
	t.Helper()
	client, err := ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.Settings{
		Quality:      20,
		SoftwareCRF:  22,
		AudioBitrate: "320k",
	}, ffmpeg.WithLauncher(launcher))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestTranscodeHardwareArgs(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Sample.mp4")
	launcher := &stubLauncher{procs: []ffmpeg.Process{&stubProcess{
		lines: []string{
			"frame= 100 fps=60 q=20.0 size=1024kB time=00:00:30.00 bitrate=1398.1kbits/s",
			"frame= 200 fps=60 q=20.0 size=2048kB time=00:01:00.00 bitrate=1398.1kbits/s",
		},
		onStart: func() {
			testsupport.WriteFile(t, output, 2048)
		},
	}}}

	client := newClient(t, launcher)
	var percents []float64
	result, err := client.Transcode(context.Background(), ffmpeg.TranscodeRequest{
		InputPath:       filepath.Join(dir, "Sample.webm"),
		OutputPath:      output,
		Encoder:         ffmpeg.EncoderAV1NVENC,
		DurationSeconds: 120,
		BitRateBPS:      2_000_000,
	}, func(p float64) {
		percents = append(percents, p)
	})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if result.Encoder != ffmpeg.EncoderAV1NVENC || result.FellBack {
		t.Errorf("result = %+v", result)
	}
	if result.FileSizeBytes != 2048 {
		t.Errorf("size = %d", result.FileSizeBytes)
	}

	args := strings.Join(launcher.calls[0], " ")
	for _, want := range []string{
		"-c:v av1_nvenc",
		"-preset p7",
		"-tune uhq",
		"-rc vbr",
		"-cq 20",
		"-rc-lookahead 32",
		"-spatial-aq 1",
		"-temporal-aq 1",
		"-aq-strength 8",
		"-maxrate 2000000",
		"-bufsize 4000000",
		"-c:a aac",
		"-b:a 320k",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %q", want, args)
		}
	}

	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("percents = %v, want terminal 100", percents)
	}
	for _, p := range percents[:len(percents)-1] {
		if p >= 100 {
			t.Fatalf("in-flight percent reached %v before success", p)
		}
	}
}

func TestTranscodeSoftwareArgs(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Sample.mp4")
	launcher := &stubLauncher{procs: []ffmpeg.Process{&stubProcess{
		onStart: func() {
			testsupport.WriteFile(t, output, 1)
		},
	}}}

	client := newClient(t, launcher)
	if _, err := client.Transcode(context.Background(), ffmpeg.TranscodeRequest{
		InputPath:       filepath.Join(dir, "Sample.webm"),
		OutputPath:      output,
		Encoder:         ffmpeg.EncoderX264,
		DurationSeconds: 60,
		BitRateBPS:      1_000_000,
	}, nil); err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	args := strings.Join(launcher.calls[0], " ")
	for _, want := range []string{"-c:v libx264", "-preset slow", "-crf 22"} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %q", want, args)
		}
	}
	for _, reject := range []string{"-cq", "-tune uhq", "-gpu"} {
		if strings.Contains(args, reject) {
			t.Errorf("software args carry hardware flag %q: %q", reject, args)
		}
	}
}

func TestTranscodeFallsBackOnceOnHardwareFailure(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Sample.mp4")
	failing := &stubProcess{
		lines: []string{"OpenEncodeSessionEx failed: out of memory (10)"},
		code:  1,
	}
	success := &stubProcess{
		onStart: func() {
			testsupport.WriteFile(t, output, 1)
		},
	}
	launcher := &stubLauncher{procs: []ffmpeg.Process{failing, success}}

	client := newClient(t, launcher)
	result, err := client.Transcode(context.Background(), ffmpeg.TranscodeRequest{
		InputPath:       filepath.Join(dir, "Sample.webm"),
		OutputPath:      output,
		Encoder:         ffmpeg.EncoderAV1NVENC,
		DurationSeconds: 60,
		BitRateBPS:      1_000_000,
	}, nil)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if !result.FellBack || result.Encoder != ffmpeg.EncoderHEVCNVENC {
		t.Fatalf("result = %+v, want hevc_nvenc fallback", result)
	}
	if len(launcher.calls) != 2 {
		t.Fatalf("attempts = %d, want 2", len(launcher.calls))
	}
	if !strings.Contains(strings.Join(launcher.calls[1], " "), "-c:v hevc_nvenc") {
		t.Errorf("retry args = %v", launcher.calls[1])
	}
}

func TestTranscodeProgressMonotonicAcrossFallback(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Sample.mp4")
	failing := &stubProcess{
		lines: []string{
			"frame= 100 fps=60 q=20.0 size=1024kB time=00:01:00.00 bitrate=1398.1kbits/s",
			"OpenEncodeSessionEx failed: out of memory (10)",
		},
		code: 1,
	}
	fallback := &stubProcess{
		lines: []string{
			"frame= 10 fps=60 q=20.0 size=128kB time=00:00:12.00 bitrate=1398.1kbits/s",
			"frame= 150 fps=60 q=20.0 size=1536kB time=00:01:30.00 bitrate=1398.1kbits/s",
		},
		onStart: func() {
			testsupport.WriteFile(t, output, 1)
		},
	}
	launcher := &stubLauncher{procs: []ffmpeg.Process{failing, fallback}}

	client := newClient(t, launcher)
	var percents []float64
	result, err := client.Transcode(context.Background(), ffmpeg.TranscodeRequest{
		InputPath:       filepath.Join(dir, "Sample.webm"),
		OutputPath:      output,
		Encoder:         ffmpeg.EncoderAV1NVENC,
		DurationSeconds: 120,
		BitRateBPS:      2_000_000,
	}, func(p float64) {
		percents = append(percents, p)
	})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if !result.FellBack {
		t.Fatalf("result = %+v, want fallback", result)
	}

	last := -1.0
	for _, p := range percents {
		if p < last {
			t.Fatalf("progress regressed: %v", percents)
		}
		last = p
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("percents = %v, want terminal 100", percents)
	}
	// The fallback run restarts at 10%; that reading stays suppressed.
	for _, p := range percents {
		if p == 10 {
			t.Fatalf("fallback restart leaked through the high-water mark: %v", percents)
		}
	}
}

func TestTranscodeNoFallbackFromSoftwareFloor(t *testing.T) {
	failing := &stubProcess{lines: []string{"Conversion failed!"}, code: 1}
	launcher := &stubLauncher{procs: []ffmpeg.Process{failing}}

	client := newClient(t, launcher)
	_, err := client.Transcode(context.Background(), ffmpeg.TranscodeRequest{
		InputPath:       "in.webm",
		OutputPath:      "out.mp4",
		Encoder:         ffmpeg.EncoderX264,
		DurationSeconds: 60,
		BitRateBPS:      1_000_000,
	}, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v", err)
	}
	if len(launcher.calls) != 1 {
		t.Fatalf("attempts = %d, want 1", len(launcher.calls))
	}
}

type blockingProcess struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func newBlockingProcess() *blockingProcess {
	return &blockingProcess{lines: make(chan string), done: make(chan struct{})}
}

func (p *blockingProcess) Lines() <-chan string { return p.lines }

func (p *blockingProcess) Wait() (int, error) {
	<-p.done
	return -1, nil
}

func (p *blockingProcess) Terminate() {
	p.once.Do(func() {
		close(p.lines)
		close(p.done)
	})
}

func TestTranscodeCancellationSkipsFallback(t *testing.T) {
	proc := newBlockingProcess()
	launcher := &stubLauncher{procs: []ffmpeg.Process{proc}}
	client := newClient(t, launcher)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Transcode(ctx, ffmpeg.TranscodeRequest{
			InputPath:       "in.webm",
			OutputPath:      "out.mp4",
			Encoder:         ffmpeg.EncoderAV1NVENC,
			DurationSeconds: 60,
			BitRateBPS:      1_000_000,
		}, nil)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if !ffmpeg.IsCancelled(err) {
			t.Fatalf("error = %v, want cancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transcode did not unwind after cancellation")
	}
	if len(launcher.calls) != 1 {
		t.Fatalf("attempts = %d, cancellation must not fall back", len(launcher.calls))
	}
}

func TestProbeUsesFFprobe(t *testing.T) {
	payload := `{"streams":[{"codec_name":"h264","codec_type":"video","width":1280,"height":720}],"format":{"format_name":"mp4","duration":"90.0","bit_rate":"800000"}}`
	launcher := &stubLauncher{procs: []ffmpeg.Process{&stubProcess{lines: []string{payload}}}}

	client := newClient(t, launcher)
	info, err := client.Probe(context.Background(), "/media/Sample.mp4")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.VideoCodec != "h264" || info.DurationSeconds != 90 {
		t.Errorf("info = %+v", info)
	}
	if launcher.calls[0][0] != "ffprobe" {
		t.Errorf("binary = %q", launcher.calls[0][0])
	}
}

func TestDetectEncodersFiltersHardwareWithoutGPU(t *testing.T) {
	table := []string{
		"Encoders:",
		" ------",
		" V....D libx264              libx264 H.264",
		" V....D av1_nvenc            NVIDIA NVENC av1 encoder",
		" V....D hevc_nvenc           NVIDIA NVENC hevc encoder",
	}
	launcher := &stubLauncher{procs: []ffmpeg.Process{&stubProcess{lines: table}}}
	client := newClient(t, launcher)

	withGPU, err := client.DetectEncoders(context.Background(), true)
	if err != nil {
		t.Fatalf("DetectEncoders: %v", err)
	}
	if ffmpeg.SelectEncoder(withGPU) != ffmpeg.EncoderAV1NVENC {
		t.Errorf("with gpu = %v", withGPU)
	}

	launcher2 := &stubLauncher{procs: []ffmpeg.Process{&stubProcess{lines: table}}}
	client2 := newClient(t, launcher2)
	withoutGPU, err := client2.DetectEncoders(context.Background(), false)
	if err != nil {
		t.Fatalf("DetectEncoders: %v", err)
	}
	if len(withoutGPU) != 1 || withoutGPU[0] != ffmpeg.EncoderX264 {
		t.Errorf("without gpu = %v", withoutGPU)
	}
}
