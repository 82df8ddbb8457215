// Package flaredantic exposes a local port through a Cloudflare quick
// tunnel by driving the cloudflared daemon.
//
// The cloudflared executable is downloaded into ~/.flaredantic on first
// use (or taken from Config.BinaryPath), started as a supervised
// subprocess, and its output is scanned for the trycloudflare.com URL.
//
//	cfg, err := flaredantic.NewConfig(8080, flaredantic.WithTimeout(time.Minute))
//	if err != nil {
//		return err
//	}
//	err = flaredantic.Run(ctx, cfg, func(ctx context.Context, t *flaredantic.Tunnel) error {
//		fmt.Println("public URL:", t.URL())
//		return serve(ctx)
//	})
//
// Run stops the daemon on every exit path. Callers managing the lifetime
// themselves use New, Start and Stop.
//
// Every error returned by the package matches ErrCloudflared with
// errors.Is; the kind sentinels and structured types below narrow it down.
package flaredantic
