package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/zxhio/pktprobe/internal/api"
	"github.com/zxhio/pktprobe/internal/probeprog"
	"github.com/zxhio/pktprobe/internal/service"
	"github.com/zxhio/pktprobe/internal/tracepipe"
	"github.com/zxhio/pktprobe/pkg/builder"
	"github.com/zxhio/pktprobe/pkg/profile"
	"github.com/zxhio/pktprobe/pkg/utils"
)

const logoAscii = `
       |   |
 _ \ | / _ \ _ \ _ \ _ \ -_)
.__/_\_\_|  _|\___/.__/\___|
_|             _|         `

var (
	version   bool
	verbose   bool
	listen    string
	trace     bool
	traceRate int
	logFile   string
	pprofAddr string
)

func main() {
	pflag.BoolVarP(&version, "version", "V", false, "Print version")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	pflag.StringVarP(&listen, "listen", "l", ":9931", "API listen address")
	pflag.BoolVar(&trace, "trace", true, "Write payload values to the trace pipe and relay them to the log")
	pflag.IntVar(&traceRate, "trace-rate", 100, "Relayed payload values per second, 0 for no limit")
	pflag.StringVar(&logFile, "log-file", "/var/log/pktprobe/pktprobed.log", "Log file when not verbose")
	pflag.StringVar(&pprofAddr, "pprof", "", "Serve runtime profiles on this address")
	pflag.Parse()

	if version {
		fmt.Println(color.HiBlueString(logoAscii))
		fmt.Println(builder.BuildInfo())
		os.Exit(0)
	}

	if verbose {
		gin.SetMode(gin.DebugMode)
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     60,
			Compress:   true,
		})
	}

	logrus.WithFields(logrus.Fields{"pid": os.Getpid(), "version": builder.Version}).Info("///pktprobed start")
	defer logrus.WithField("pid", os.Getpid()).Info("///pktprobed quit")

	// A program the verifier rejects leaves nothing to serve.
	objs, err := probeprog.LoadObjects(probeprog.WithTrace(trace))
	if err != nil {
		logrus.WithError(err).Fatal("Fatal to load probe programs")
	}
	logrus.Info("Loaded probe programs")

	attachment, err := service.NewAttachmentService(objs)
	if err != nil {
		logrus.WithError(err).Fatal("Fatal to new attachment service")
	}
	logrus.Info("New attachment service")

	closers := utils.NamedClosers{
		{Name: "probeprog.Objects", Close: objs.Close},
		{Name: "service.AttachmentService", Close: attachment.Close},
	}
	defer closers.Close(&utils.CloseOpt{
		ReverseOrder: true,
		Output:       logrus.Info,
		ErrorOutput:  logrus.Error,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if trace {
		relay := tracepipe.NewRelay(tracepipe.WithRate(traceRate, traceRate))
		go func() {
			if err := relay.Run(ctx); err != nil {
				logrus.WithError(err).Warn("Trace relay stopped")
			}
			relayed, dropped := relay.Stats()
			logrus.WithFields(logrus.Fields{"relayed": relayed, "dropped": dropped}).Info("Trace relay done")
		}()
	}

	if pprofAddr != "" {
		plis, err := net.Listen("tcp", pprofAddr)
		if err != nil {
			logrus.WithError(err).Fatal("Fatal to listen pprof")
		}
		defer plis.Close()
		logrus.WithFields(logrus.Fields{"addr": plis.Addr(), "path": profile.DefaultPrefix}).Info("Serve pprof")
		go profile.Serve(plis)
	}

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		logrus.WithError(err).Fatal("Fatal to listen")
	}
	defer lis.Close()
	logrus.WithField("addr", lis.Addr()).Info("Listen on")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logrus.WithField("sig", sig).Info("Recv signal")
		cancel()
		lis.Close()
	}()

	g := gin.Default()
	api.SetAttachmentRouter(g, attachment)
	api.SetProbeRouter(g, attachment)
	if err := g.RunListener(lis); err != nil {
		logrus.WithError(err).Info("API server stopped")
	}
}
