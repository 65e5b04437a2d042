// Command spool is a small IMAP mailbox inspector.
//
// It connects to an account described in a YAML file, lists the
// mailboxes, and prints the newest message envelopes of one mailbox.
// With -idle it then waits for server updates until interrupted.
//
// Example config:
//
//	host: imap.example.com
//	port: 993
//	username: bob@example.com
//	password: secret
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"

	"crawshaw.io/iox"
	"gopkg.in/yaml.v3"

	"spool.ink/imap"
	"spool.ink/imap/imapclient"
)

var version = "unknown" // filled in by "-ldflags=-X main.version=<val>"

type config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// AccessToken switches authentication to XOAUTH2.
	AccessToken string `yaml:"access_token"`
}

func main() {
	log.SetFlags(0)

	flagConfig := flag.String("config", "spool.yaml", "account configuration file")
	flagMailbox := flag.String("mailbox", "INBOX", "mailbox to inspect")
	flagCount := flag.Int("n", 10, "number of envelopes to print")
	flagIdle := flag.Bool("idle", false, "wait for server updates after printing")
	flagDebug := flag.String("debug", "", "write a C:/S: wire transcript to this file")
	flagVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *flagVersion {
		fmt.Println("spool", version)
		return
	}

	cfgBytes, err := os.ReadFile(*flagConfig)
	if err != nil {
		log.Fatal(err)
	}
	cfg := config{Port: 993}
	if err := yaml.Unmarshal(cfgBytes, &cfg); err != nil {
		log.Fatalf("%s: %v", *flagConfig, err)
	}
	if cfg.Host == "" || cfg.Username == "" {
		log.Fatalf("%s: host and username are required", *flagConfig)
	}

	opts := &imapclient.Options{
		Filer: iox.NewFiler(0),
		Logf:  log.Printf,
		Push: func(u *imap.Untagged) {
			switch u.Type {
			case imap.UntaggedExists:
				log.Printf("mailbox now has %d messages", u.Num)
			case imap.UntaggedExpunge:
				log.Printf("message %d expunged", u.Num)
			}
		},
	}
	if *flagDebug != "" {
		f, err := os.Create(*flagDebug)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		opts.Debug = f
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	netConn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		log.Fatal(err)
	}
	c, err := imapclient.Connect(netConn, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if cfg.AccessToken != "" {
		err = c.Authenticate(imapclient.XOAuth2(cfg.Username, cfg.AccessToken))
	} else {
		err = c.Login(cfg.Username, cfg.Password)
	}
	if err != nil {
		log.Fatalf("authentication failed: %v", err)
	}

	mailboxes, err := c.List("", "*")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d mailboxes:\n", len(mailboxes))
	for _, m := range mailboxes {
		fmt.Printf("  %-30s %s\n", m.Mailbox, m.Attrs)
	}

	mbox, err := c.Examine(*flagMailbox, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\n%s: %d messages, uidvalidity %d, uidnext %d\n",
		mbox.Name, mbox.NumMessages, mbox.UIDValidity, mbox.UIDNext)

	if mbox.NumMessages > 0 {
		lo := uint32(1)
		if n := uint32(*flagCount); mbox.NumMessages > n {
			lo = mbox.NumMessages - n + 1
		}
		stream, err := c.Fetch(
			[]imap.SeqRange{{Min: lo, Max: mbox.NumMessages}},
			[]imapclient.FetchItem{
				imapclient.FetchUID(),
				imapclient.FetchEnvelope(),
				imapclient.FetchInternalDate(),
			}, nil)
		if err != nil {
			log.Fatal(err)
		}
		for stream.Next() {
			r := stream.Result()
			env := r.Attr(imap.AttrEnvelope)
			if env == nil || env.Envelope == nil {
				continue
			}
			from := ""
			if len(env.Envelope.From) > 0 {
				from = env.Envelope.From[0].String()
			}
			fmt.Printf("%6d  %-28s  %s\n", r.UID(), from, env.Envelope.Subject)
		}
		if err := stream.Err(); err != nil {
			log.Fatal(err)
		}
	}

	if *flagIdle {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		go func() {
			<-interrupt
			if err := c.IdleDone(); err != nil {
				log.Fatal(err)
			}
		}()
		log.Printf("idling, ^C to stop")
		if err := c.Idle(); err != nil {
			log.Fatal(err)
		}
	}

	if err := c.Logout(); err != nil {
		log.Fatal(err)
	}
}
