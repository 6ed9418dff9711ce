package main

import (
	"flag"
	"fmt"
	"io/fs"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qrilka/kontiki/persistent"
	"github.com/qrilka/kontiki/raft"
	"github.com/qrilka/kontiki/rpc"
	"github.com/qrilka/kontiki/timer"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

type config struct {
	Cluster          []raft.Server
	HeartbeatTimeout int // In milliseconds
	ElectionTimeout  int // In milliseconds
}

func runServer(args []string) {
	flagset := flag.NewFlagSet("server", flag.ExitOnError)
	configFile := flagset.String("config", "", "YAML file containing cluster & configuration details")
	index := flagset.Int("me", -1, "Index of this server in the config file")
	if err := flagset.Parse(args); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	bytes, err := ioutil.ReadFile(*configFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	var cfg config
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	if *index < 0 || *index >= len(cfg.Cluster) {
		fmt.Printf("invalid index: %d (config file specified %d servers only)\n", *index, len(cfg.Cluster))
		os.Exit(2)
	}
	me := cfg.Cluster[*index]

	var members []uuid.UUID
	for _, server := range cfg.Cluster {
		members = append(members, server.ID)
	}
	clusterConfig, err := raft.NewClusterConfig(me.ID, members)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	logStore, logErr := persistent.CreateDbLogStore(fmt.Sprintf("%v_logstore.db", me.ID))
	stateStore, stateErr := persistent.NewPStore(fmt.Sprintf("%v_statestore.db", me.ID))
	if err := multierr.Combine(logErr, stateErr); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	manager := rpc.NewManager(me, cfg.Cluster)
	timers := timer.NewService(me.ID,
		time.Millisecond*time.Duration(cfg.ElectionTimeout),
		time.Millisecond*time.Duration(cfg.HeartbeatTimeout))

	node, err := raft.NewNode(raft.Env{
		Config:    clusterConfig,
		Log:       logStore,
		State:     stateStore,
		Transport: manager,
		Timers:    timers,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	go func() {
		if err := manager.Start(me.NetAddress, node); err != nil {
			fmt.Printf("%v: failed to start RPC server: %v\n", me.ID, err)
			os.Exit(2)
		}
	}()
	timers.Start(node)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		fmt.Println("Stopping server ...")
		timers.Stop()
		if err := multierr.Append(manager.Stop(), node.Stop()); err != nil {
			fmt.Println(err)
		}
	}()

	if err := node.Run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func generateConfig(args []string) {
	flagset := flag.NewFlagSet("config", flag.ExitOnError)
	var filepath, servers string
	var electionTimeout, heartbeatTimeout int
	flagset.StringVar(&filepath, "file", "config.yaml", "full path of config file to write to")
	flagset.StringVar(&servers, "servers", "localhost:12345,localhost:12346,localhost:12347", "comma-seperated list of server addresses of raft servers")
	flagset.IntVar(&electionTimeout, "electionTimeout", 200, "value of election timeout (in milliseconds)")
	flagset.IntVar(&heartbeatTimeout, "heartbeatTimeout", 50, "value of heartbeat timeout (in milliseconds)")
	if err := flagset.Parse(args); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	var cfg config
	for _, addr := range strings.Split(servers, ",") {
		cfg.Cluster = append(cfg.Cluster, raft.Server{
			ID:         uuid.New(),
			NetAddress: raft.ServerAddress(addr),
		})
	}
	cfg.HeartbeatTimeout = heartbeatTimeout
	cfg.ElectionTimeout = electionTimeout

	if bytes, err := yaml.Marshal(cfg); err != nil {
		fmt.Println(err)
		os.Exit(2)
	} else {
		err := ioutil.WriteFile(filepath, bytes, fs.ModePerm)
		if err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
	}
}

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Printf("usage: %s config | server ...\n", os.Args[0])
		os.Exit(2)
	}
	switch args[0] {
	case "config":
		generateConfig(args[1:])
	case "server":
		runServer(args[1:])
	default:
		fmt.Printf("unknown sub-command: %s\n", args[0])
		os.Exit(2)
	}
}
