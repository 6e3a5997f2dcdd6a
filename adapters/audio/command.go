package audio

import (
	"os/exec"
	"strconv"
)

// Command is an external audio tool invocation
type Command struct {
	Name string
	Args []string
}

// available filters cmds down to those installed in PATH
func available(cmds []Command) []Command {
	var found []Command
	for _, c := range cmds {
		if _, err := exec.LookPath(c.Name); err == nil {
			found = append(found, c)
		}
	}
	return found
}

// DefaultPlayers plays signed 16-bit mono raw PCM from stdin
func DefaultPlayers(sampleRate int) []Command {
	rate := strconv.Itoa(sampleRate)
	return []Command{
		// SoX
		{"play", []string{"-q", "-t", "raw", "-r", rate, "-e", "signed", "-b", "16", "-c", "1", "-"}},
		// FFplay
		{"ffplay", []string{"-loglevel", "quiet", "-f", "s16le", "-ar", rate, "-ac", "1", "-nodisp", "-autoexit", "-"}},
		// ALSA
		{"aplay", []string{"-q", "-f", "S16_LE", "-r", rate, "-c", "1", "-"}},
	}
}

// DefaultRecorders capture up to seconds of signed 16-bit mono raw PCM to stdout
func DefaultRecorders(sampleRate, seconds int) []Command {
	rate := strconv.Itoa(sampleRate)
	limit := strconv.Itoa(seconds)
	return []Command{
		// SoX stops early after 1.5s of trailing silence
		{"rec", []string{"-q", "-t", "raw", "-r", rate, "-e", "signed", "-b", "16", "-c", "1", "-",
			"trim", "0", limit, "silence", "1", "0.1", "1%", "1", "1.5", "1%"}},
		// ALSA
		{"arecord", []string{"-q", "-f", "S16_LE", "-r", rate, "-c", "1", "-t", "raw", "-d", limit}},
		// FFmpeg
		{"ffmpeg", []string{"-loglevel", "quiet", "-f", "alsa", "-i", "default", "-t", limit,
			"-f", "s16le", "-ar", rate, "-ac", "1", "-"}},
	}
}
