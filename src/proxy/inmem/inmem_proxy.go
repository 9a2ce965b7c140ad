package inmem

import (
	"github.com/mosaicnetworks/mxboard/src/event"
	"github.com/mosaicnetworks/mxboard/src/node/state"
	"github.com/mosaicnetworks/mxboard/src/proxy"
	"github.com/sirupsen/logrus"
)

//InmemProxy implements the AppProxy interface natively
type InmemProxy struct {
	handler  proxy.ProxyHandler
	submitCh chan event.Intent
	logger   *logrus.Entry
}

// NewInmemProxy instantiates an InmemProxy from a set of handlers.
// If no logger, a new one is created
func NewInmemProxy(handler proxy.ProxyHandler,
	logger *logrus.Entry) *InmemProxy {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &InmemProxy{
		handler:  handler,
		submitCh: make(chan event.Intent),
		logger:   logger,
	}
}

/*******************************************************************************
* Submit                                                                       *
*******************************************************************************/

//Submit is called by the App to submit an Intent to the node. It blocks until
//the node picks it up.
func (p *InmemProxy) Submit(intent event.Intent) {
	p.submitCh <- intent
}

//SubmitCreate asks the cluster to create an entry
func (p *InmemProxy) SubmitCreate(key, value string) {
	p.Submit(event.Intent{Kind: event.Create, Key: key, Value: value})
}

//SubmitUpdate asks the cluster to change the value of an entry
func (p *InmemProxy) SubmitUpdate(key, value string) {
	p.Submit(event.Intent{Kind: event.Update, Key: key, Value: value})
}

//SubmitDelete asks the cluster to remove an entry
func (p *InmemProxy) SubmitDelete(key string) {
	p.Submit(event.Intent{Kind: event.Delete, Key: key})
}

/*******************************************************************************
* Implement AppProxy Interface                                                 *
*******************************************************************************/

//SubmitCh returns the channel of intents
func (p *InmemProxy) SubmitCh() chan event.Intent {
	return p.submitCh
}

//CommitEvent calls the commitHandler
func (p *InmemProxy) CommitEvent(ev event.Event) error {
	err := p.handler.CommitHandler(ev)

	p.logger.WithFields(logrus.Fields{
		"event": ev.String(),
		"err":   err,
	}).Debug("InmemProxy.CommitEvent")

	return err
}

//OnStateChanged calls the StateChangeHandler
func (p *InmemProxy) OnStateChanged(state state.State) error {
	return p.handler.StateChangeHandler(state)
}
