package pipeline

import (
	"context"
	"errors"
	"fmt"

	"assetgen/internal/domain"
	"assetgen/internal/providers/audio"
	"assetgen/internal/providers/video"
)

const (
	legacyFrameCount     = 4
	legacySlideshowScore = 0.60
	bgmFrequencyHz       = 220.0
	ttsMaxChars          = 800
	skipsVeoReason       = "Storyboard endpoint intentionally skips Veo."
)

// First-generation stage sequences. Neither mode plans scenes.

func (j *jobRun) legacyPlanning(ctx context.Context) error {
	return j.writeStrategy(ctx)
}

func (j *jobRun) legacyThumbnail(ctx context.Context) error {
	out, err := j.o.guard.Generate(ctx, j.trace, GuardRequest{
		ID:          "thumbnail",
		Prompt:      legacyThumbnailPrompt(j.brief),
		OutputKey:   j.key(thumbnailFile),
		NoTextGuard: true,
	})
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	j.artifacts++
	j.addFile(domain.FileThumbnail, out.Key)
	return nil
}

// runLegacyVideo tries the video provider up to MaxVideoAttempts times and
// keeps the first clip that clears the quality threshold. With the
// "storyboard" fallback mode a miss degrades to a thumbnail slideshow.
func (j *jobRun) runLegacyVideo(ctx context.Context) error {
	if err := j.stage(ctx, domain.StagePlanning, progressPlanning, j.legacyPlanning); err != nil {
		return err
	}
	if err := j.stage(ctx, domain.StageThumbnail, progressThumbnail, j.legacyThumbnail); err != nil {
		return err
	}
	return j.stage(ctx, domain.StageVideo, progressStoryboard, func(ctx context.Context) error {
		err := j.legacyVideoAttempts(ctx)
		if err == nil {
			j.outputMode = domain.ModeVideo
			return nil
		}
		if j.brief.Options.FallbackMode != string(domain.ModeStoryboard) {
			return err
		}
		j.log.Warn().Err(err).Msg("video generation failed, falling back to slideshow")
		return j.slideshowFallback(ctx, err)
	})
}

func (j *jobRun) legacyVideoAttempts(ctx context.Context) error {
	if j.o.videos == nil {
		return domain.Permanent("video", errors.New("video provider not configured"))
	}
	attempts := max(1, j.o.cfg.MaxVideoAttempts)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		j.res.Attempts.VideoAttempts = attempt + 1
		j.trace.markVideo()
		asset, err := j.o.videos.Generate(ctx, video.GenerateRequest{
			Prompt:      legacyVideoPrompt(j.brief),
			DurationSec: j.brief.Options.MaxVideoSeconds,
			RequestID:   fmt.Sprintf("%s-video-%d", j.id, attempt),
		})
		if err != nil {
			lastErr = err
			j.log.Warn().Err(err).Int("attempt", attempt).Msg("video attempt failed")
			continue
		}
		key, err := j.o.files.Write(ctx, j.key(previewVideoFile), asset.Data)
		if err != nil {
			return fmt.Errorf("store video: %w", err)
		}
		score := videoQuality(len(asset.Data))
		j.res.QualityScores["video_quality_score"] = score
		if score >= j.o.cfg.VideoQualityThreshold {
			j.artifacts++
			public := j.addFile(domain.FileVideo, key)
			j.patch(domain.JobPatch{VideoPath: domain.Ptr(public), OutputMode: domain.Ptr(domain.ModeVideo)})
			return nil
		}
		lastErr = fmt.Errorf("video quality %.2f below threshold %.2f", score, j.o.cfg.VideoQualityThreshold)
	}
	if lastErr == nil {
		lastErr = errors.New("video generation failed")
	}
	return lastErr
}

func (j *jobRun) slideshowFallback(ctx context.Context, cause error) error {
	thumb, err := j.o.files.Path(j.key(thumbnailFile))
	if err != nil {
		return err
	}
	public, err := j.composeSilent(ctx, []string{thumb}, previewVideoFile)
	if err != nil {
		return fmt.Errorf("fallback slideshow: %w (after %v)", err, cause)
	}
	reason := cause.Error()
	j.res.FallbackReason = &reason
	j.res.Attempts.FallbackUsed = true
	j.res.QualityScores["video_quality_score"] = legacySlideshowScore
	j.res.Files[domain.FileVideo] = public
	j.outputMode = domain.ModeStoryboard
	j.patch(domain.JobPatch{AltVideoPath: domain.Ptr(public), OutputMode: domain.Ptr(domain.ModeStoryboard)})
	return nil
}

// runImageVoiceMusic renders editorial frames, narrates the summary and mixes
// it over a synthesized tone. It never calls the video provider.
func (j *jobRun) runImageVoiceMusic(ctx context.Context) error {
	j.res.FrameCount = legacyFrameCount
	if err := j.stage(ctx, domain.StagePlanning, progressPlanning, j.legacyPlanning); err != nil {
		return err
	}
	if err := j.stage(ctx, domain.StageThumbnail, progressThumbnail, j.legacyThumbnail); err != nil {
		return err
	}

	var frames []string
	err := j.stage(ctx, domain.StageStoryboard, progressStoryboard, func(ctx context.Context) error {
		reason := skipsVeoReason
		j.res.FallbackReason = &reason
		j.res.Attempts.FallbackUsed = true
		for i, prompt := range legacyFramePrompts(j.brief, legacyFrameCount) {
			name := fmt.Sprintf("frame_%02d", i+1)
			out, err := j.o.guard.Generate(ctx, j.trace, GuardRequest{
				ID:          name,
				Prompt:      prompt,
				OutputKey:   j.key(framesDir, name+".png"),
				NoTextGuard: true,
			})
			if err != nil {
				return fmt.Errorf("editorial %s: %w", name, err)
			}
			j.artifacts++
			j.addFile(domain.FramePathKey(i+1), out.Key)
			p, err := j.o.files.Path(out.Key)
			if err != nil {
				return err
			}
			frames = append(frames, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := j.stage(ctx, domain.StageVoice, progressVeo, func(ctx context.Context) error {
		return j.narratedSlideshow(ctx, frames)
	}); err != nil {
		return err
	}
	j.outputMode = domain.ModeImageVoiceMusic
	return nil
}

func (j *jobRun) narratedSlideshow(ctx context.Context, frames []string) error {
	if j.o.audio == nil {
		return domain.Permanent("tts", errors.New("audio provider not configured"))
	}
	j.trace.markTTS()
	voice, err := j.o.audio.Generate(ctx, j.brief.SummaryText(ttsMaxChars))
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	voiceKey, err := j.o.files.Write(ctx, j.key(voiceoverFile), voice.Data)
	if err != nil {
		return fmt.Errorf("store voiceover: %w", err)
	}
	j.addFile(domain.FileVoiceover, voiceKey)

	bgmKey, err := j.o.files.Write(ctx, j.key(bgmFile), audio.SineWAV(j.brief.Options.MaxVideoSeconds, bgmFrequencyHz))
	if err != nil {
		return fmt.Errorf("store bgm: %w", err)
	}
	j.addFile(domain.FileBGM, bgmKey)

	voicePath, err := j.o.files.Path(voiceKey)
	if err != nil {
		return err
	}
	bgmPath, err := j.o.files.Path(bgmKey)
	if err != nil {
		return err
	}
	key := j.key(previewVideoFile)
	out, err := j.o.files.Path(key)
	if err != nil {
		return err
	}
	total := float64(j.brief.Options.MaxVideoSeconds)
	mix := AudioMix{Voice: voicePath, BGM: bgmPath, VoiceVolume: 1.0, BGMVolume: 0.2}
	if err := j.o.composer.ComposeWithAudio(ctx, frames, out, total, mix); err != nil {
		j.log.Warn().Err(err).Msg("audio mix failed, composing silent slideshow")
		if err := j.o.composer.Compose(ctx, frames, out, total); err != nil {
			return fmt.Errorf("compose slideshow: %w", err)
		}
	}
	j.artifacts++
	public := j.addFile(domain.FileVideo, key)
	j.res.QualityScores["video_quality_score"] = legacySlideshowScore
	j.patch(domain.JobPatch{
		VideoPath:    domain.Ptr(public),
		AltVideoPath: domain.Ptr(public),
		OutputMode:   domain.Ptr(domain.ModeImageVoiceMusic),
	})
	return nil
}
