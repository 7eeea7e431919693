package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "run":
		return runClip(args[1:])
	case "tools":
		return runTools(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "status":
		return runStatus(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("autoclipper: cut every video of a playlist into fixed-length clips")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  autoclipper doctor")
	fmt.Println("  autoclipper run --url <playlist-url> [--clip-length 10] [--format mp4]")
	fmt.Println("  autoclipper status")
	fmt.Println("  autoclipper run --tui          (asks for URL and defaults)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       download a playlist and segment each video into clips")
	fmt.Println("  tools     download/verify yt-dlp, ffmpeg and ffprobe into the install dir")
	fmt.Println("  doctor    run dependency and filesystem preflight checks")
	fmt.Println("  settings  show/update persisted defaults")
	fmt.Println("  status    list past runs recorded in an output directory")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Videos longer than 20 minutes are skipped")
	fmt.Println("  - Put cookies.txt in the install dir, or pass --cookies / --browser-cookies, for private playlists")
}
