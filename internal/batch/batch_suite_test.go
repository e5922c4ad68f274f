package batch_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	log "github.com/sirupsen/logrus"
)

func TestBatch(t *testing.T) {
	log.SetLevel(log.WarnLevel)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Batch Suite")
}
