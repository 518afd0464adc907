package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/manifest"
)

// OpenAI has a file size limit of 25mb for whisper transcriptions
const whisperLimitMB = 25

type transcriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

func Audio(ctx *cli.Context) error {
	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	files, err := listFiles(p.dataDir, ".mp3", ".m4a", ".wav")
	if err != nil {
		return err
	}

	for _, file := range files {
		if strings.Contains(file, "-chunked-") {
			continue
		}

		path := filepath.Join(p.dataDir, file)
		guid, err := fileGUID(path)
		if err != nil {
			return err
		}
		if p.known(guid) {
			fmt.Printf("transcription already indexed for %s, skipping\n", file)
			continue
		}

		transcript, err := p.transcribe(ctx.Context, guid, file)
		if err != nil {
			return err
		}

		err = p.ingest(ctx.Context, source{
			SourceData: manifest.SourceData{
				Kind:     "audio",
				Title:    strings.TrimSuffix(file, filepath.Ext(file)),
				Filename: file,
				GUID:     guid,
			},
			Text: transcript,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *pipeline) transcribe(ctx context.Context, guid, file string) (string, error) {
	transcriptionFiles, err := p.chunkAudio(guid, file)
	if err != nil {
		return "", err
	}
	fmt.Printf("transcribing the following files: %s \n", strings.Join(transcriptionFiles, ", "))

	var transcript strings.Builder
	for _, part := range transcriptionFiles {
		response, err := p.transcriber.CreateTranscription(ctx, openai.AudioRequest{
			Model:    openai.Whisper1,
			FilePath: filepath.Join(p.dataDir, part),
			Language: "en",
		})
		if err != nil {
			return "", fmt.Errorf("unexpected error from whisper: %w", err)
		}
		transcript.WriteString(response.Text)
		transcript.WriteString(" ")
	}
	return transcript.String(), nil
}

// chunkAudio splits files into small enough pieces to be transcribed by Whisper, if necessary
func (p *pipeline) chunkAudio(guid, file string) ([]string, error) {
	fileInfo, err := os.Stat(filepath.Join(p.dataDir, file))
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", file, err)
	}

	filesizeMB := fileInfo.Size() / 1000 / 1000
	if filesizeMB <= whisperLimitMB {
		return []string{file}, nil
	}

	prefix := chunkPrefix(guid)
	existing, err := listPrefixed(p.dataDir, prefix)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	fmt.Printf("File is %d MB, files over %dMB will be split into 20 minute chunks\n", filesizeMB, whisperLimitMB)
	ext := filepath.Ext(file)
	cmd := exec.Command("ffmpeg", "-i", filepath.Join(p.dataDir, file), "-f", "segment", "-segment_time", "1200", "-c", "copy", filepath.Join(p.dataDir, prefix+"%02d"+ext))
	output, err := cmd.CombinedOutput()
	if err != nil {
		fmt.Println(string(output))
		return nil, fmt.Errorf("failed to split files: %w", err)
	}

	return listPrefixed(p.dataDir, prefix)
}

func chunkPrefix(guid string) string {
	return guid[:min(len(guid), 16)] + "-chunked-"
}

// listPrefixed collects any split files for the given prefix present in the data directory
func listPrefixed(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read files in data directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}
