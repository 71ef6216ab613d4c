package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/storage"
	"resumeBuilder/internal/tasks"
)

const usage = `用法:
  admin create-profile --email <email> [--name <name>]
  admin purge-exports  --device <device-id>
  admin refresh-previews`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "create-profile":
		err = createProfile(ctx, cfg, os.Args[2:])
	case "purge-exports":
		err = purgeExports(ctx, cfg, os.Args[2:])
	case "refresh-previews":
		err = refreshPreviews(ctx, cfg)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// createProfile 创建一个口令身份，随机初始密码只打印一次。
func createProfile(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-profile", flag.ExitOnError)
	email := fs.String("email", "", "登录邮箱（必填）")
	name := fs.String("name", "", "显示名称")
	_ = fs.Parse(args)

	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return errors.New("missing required flag: --email")
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	password, err := auth.RandomPassword(24)
	if err != nil {
		return fmt.Errorf("generate password: %w", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	profile := database.Profile{
		ID:           auth.NewIdentityID(),
		Email:        e,
		Name:         strings.TrimSpace(*name),
		PasswordHash: hashed,
	}
	if err := database.NewProfileStore(db).Create(ctx, profile); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return fmt.Errorf("profile %q already exists", e)
		}
		return fmt.Errorf("create profile: %w", err)
	}

	fmt.Printf("已创建账号：\n")
	fmt.Printf("邮箱: %s\n", e)
	fmt.Printf("身份 ID: %s\n", profile.ID)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次。\n")
	return nil
}

// purgeExports 删除某个设备的全部导出文件与缩略图。
func purgeExports(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("purge-exports", flag.ExitOnError)
	device := fs.String("device", "", "设备 id（必填）")
	_ = fs.Parse(args)

	deviceID := strings.TrimSpace(*device)
	if !middleware.ValidDeviceID(deviceID) {
		return fmt.Errorf("invalid device id %q", deviceID)
	}

	client, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init storage client: %w", err)
	}
	removed, err := client.DeletePrefix(ctx, tasks.ExportPrefix(deviceID))
	if err != nil {
		return fmt.Errorf("purge exports: %w", err)
	}
	fmt.Printf("已删除 %d 个对象（设备 %s）\n", removed, deviceID)
	return nil
}

// refreshPreviews 为每个模板投递缩略图生成任务。
func refreshPreviews(ctx context.Context, cfg *config.Config) error {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer client.Close()

	for _, info := range resume.Templates() {
		task, err := tasks.NewTemplatePreviewTask(tasks.TemplatePreviewPayload{Template: info.ID})
		if err != nil {
			return err
		}
		if _, err := client.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue %s: %w", info.ID, err)
		}
		fmt.Printf("queued preview for %s\n", info.ID)
	}
	return nil
}
