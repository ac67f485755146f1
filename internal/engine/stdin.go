package engine

import (
	"bufio"
	"context"
	"io"
)

const (
	// stdinPassphraseMem caps how many passphrases the feeder keeps as an
	// in-memory replay buffer across seeds; past it the engine is
	// re-invoked in --stdout mode as a passphrase generator per seed.
	stdinPassphraseMem = 10_000_000
	// stdinBufferBytes batches candidate writes so each syscall carries
	// roughly a packet's worth of newline-terminated candidates.
	stdinBufferBytes = 1000
)

// stdinFeeder streams candidates into the engine's stdin: bare encoded
// seeds when there is no passphrase side, otherwise the cartesian product
// of each seed with every passphrase.
type stdinFeeder struct {
	stdin          io.WriteCloser
	exe            Exe
	prefix         string
	passphraseArgs []string
	buf            []byte
}

func newStdinFeeder(stdin io.WriteCloser, exe Exe, prefix string, passphraseArgs []string) *stdinFeeder {
	return &stdinFeeder{stdin: stdin, exe: exe, prefix: prefix, passphraseArgs: passphraseArgs}
}

// run drains seeds until the channel closes or the engine stops
// accepting input (it closes stdin once it finds a match), then cancels
// the producers and closes stdin so an exhausted engine sees EOF.
func (f *stdinFeeder) run(ctx context.Context, cancel context.CancelFunc, seeds <-chan []byte) {
	defer cancel()
	defer f.flush()

	if len(f.passphraseArgs) == 0 {
		for seed := range seeds {
			if !f.send(seed) {
				return
			}
		}
		return
	}

	var buffer [][]byte
	for seed := range seeds {
		extra := f.streamPassphrases(ctx, &buffer)
		for _, pass := range buffer {
			if !f.sendPair(seed, pass) {
				return
			}
		}
		for pass := range extra {
			if !f.sendPair(seed, pass) {
				return
			}
		}
	}
}

// streamPassphrases hands back the passphrases that do not fit in the
// replay buffer. When the buffer already holds the complete set, the
// returned channel is empty; otherwise the engine itself regenerates the
// stream via --stdout, skipping the buffered prefix. On the first call
// the buffer is filled from the stream up to its cap.
func (f *stdinFeeder) streamPassphrases(ctx context.Context, buffer *[][]byte) <-chan []byte {
	out := make(chan []byte, channelSize)
	if n := len(*buffer); n > 0 && n < stdinPassphraseMem {
		close(out)
		return out
	}
	skip := len(*buffer)

	args := append([]string{"--stdout", "--session", f.prefix + "stdout"}, f.passphraseArgs...)
	cmd := f.exe.command(args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		close(out)
		return out
	}
	if err := cmd.Start(); err != nil {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer cmd.Wait()
		scanner := bufio.NewScanner(stdout)
		num := 0
		for scanner.Scan() {
			num++
			if num <= skip {
				continue
			}
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	if skip == 0 {
		for pass := range out {
			*buffer = append(*buffer, pass)
			if len(*buffer) == stdinPassphraseMem {
				break
			}
		}
	}
	return out
}

func (f *stdinFeeder) sendPair(seed, pass []byte) bool {
	candidate := make([]byte, 0, len(seed)+len(pass))
	candidate = append(candidate, seed...)
	candidate = append(candidate, pass...)
	return f.send(candidate)
}

// send batches candidate plus its newline terminator; a failed write
// means the engine went away (normal after a match) and stops the feed.
func (f *stdinFeeder) send(candidate []byte) bool {
	f.buf = append(f.buf, candidate...)
	f.buf = append(f.buf, '\n')
	if len(f.buf) <= stdinBufferBytes {
		return true
	}
	_, err := f.stdin.Write(f.buf)
	f.buf = f.buf[:0]
	return err == nil
}

func (f *stdinFeeder) flush() {
	if len(f.buf) > 0 {
		f.stdin.Write(f.buf)
		f.buf = f.buf[:0]
	}
	f.stdin.Close()
}
