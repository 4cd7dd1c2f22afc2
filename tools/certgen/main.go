// Package main generates a development CA and a server certificate under
// the output directory, for use with the server's --tls-cert/--tls-key
// flags and the client's -ca flag.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hase-lab/accountd/internal/certgen"
)

func run(dir string, hosts []string, validFor time.Duration) error {
	ca, err := certgen.NewAuthority("accountd dev CA", 10*validFor)
	if err != nil {
		return err
	}
	caKey, err := ca.KeyPEM()
	if err != nil {
		return err
	}
	if err := certgen.WritePair(dir, "ca", ca.CertPEM(), caKey); err != nil {
		return err
	}

	certPEM, keyPEM, err := ca.IssueServerCertificate(hosts, validFor)
	if err != nil {
		return err
	}
	return certgen.WritePair(dir, "server", certPEM, keyPEM)
}

func main() {
	var (
		dir   string
		hosts string
		days  int
	)
	flag.StringVar(&dir, "out", "certs", "output directory")
	flag.StringVar(&hosts, "hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs for the server certificate")
	flag.IntVar(&days, "days", 365, "server certificate validity in days")
	flag.Parse()

	if err := run(dir, strings.Split(hosts, ","), time.Duration(days)*24*time.Hour); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Certificates generated into ./%s\n", dir)
}
