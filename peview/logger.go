package peview

import (
	"fmt"

	"github.com/apex/log"
	pe "github.com/saferwall/pe"
	pelog "github.com/saferwall/pe/log"
)

// parserLog forwards the PE parser's key/value records to apex/log.
// Parser errors are header anomalies, not failures of the parse, so they
// are logged as warnings.
type parserLog struct {
	logger log.Interface
}

func (l parserLog) Log(level pelog.Level, keyvals ...interface{}) error {
	msg := "pe parser"
	fields := log.Fields{}
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == pelog.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields[key] = keyvals[i+1]
	}

	ctx := l.logger.WithFields(fields)
	if level >= pelog.LevelError {
		ctx.Warn(msg)
	} else {
		ctx.Debug(msg)
	}
	return nil
}

func parseOptions() *pe.Options {
	return &pe.Options{Fast: true, Logger: parserLog{logger: log.Log}}
}
