package sim_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/uwbctl/internal/uwb"
	"github.com/srg/uwbctl/internal/uwb/sim"
	"github.com/stretchr/testify/suite"
)

type RadioTestSuite struct {
	suite.Suite

	logger *logrus.Logger
	radio  *sim.Radio
}

func (suite *RadioTestSuite) SetupTest() {
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.DebugLevel)
	suite.radio = sim.New(nil, suite.logger)
}

func (suite *RadioTestSuite) params(peer uint16) uwb.RangingParameters {
	return uwb.RangingParameters{
		ConfigID:   uwb.ConfigMulticastDSTWR,
		SessionID:  42,
		Channel:    uwb.ComplexChannel{Channel: 9, Preamble: 11},
		Peers:      []uwb.PeerDevice{{Address: uwb.AddressFromShort(peer)}},
		UpdateRate: uwb.UpdateRateAutomatic,
	}
}

func (suite *RadioTestSuite) TestAcquire_ReturnsRoleVariant() {
	ctx := context.Background()

	ctrl, err := suite.radio.AcquireControllerScope(ctx)
	suite.Require().NoError(err)
	suite.NoError(ctrl.Validate(uwb.RoleController))
	suite.Equal(uwb.ComplexChannel{Channel: 9, Preamble: 11}, ctrl.Controller.Channel)
	suite.Equal(uwb.AddressFromShort(0x1234), ctrl.LocalAddress)

	ctle, err := suite.radio.AcquireControleeScope(ctx)
	suite.Require().NoError(err)
	suite.NoError(ctle.Validate(uwb.RoleControlee))
	suite.True(ctle.Controlee.Capabilities.Distance)

	suite.Equal(2, suite.radio.Acquired())
}

func (suite *RadioTestSuite) TestAcquire_FailureInjectionIsOneShot() {
	boom := errors.New("radio busy")
	suite.radio.FailNextAcquire(boom)

	_, err := suite.radio.AcquireControllerScope(context.Background())
	suite.ErrorIs(err, boom)

	_, err = suite.radio.AcquireControllerScope(context.Background())
	suite.NoError(err, "failure injection MUST only affect one call")
}

func (suite *RadioTestSuite) TestAcquire_HonorsContext() {
	opts := sim.DefaultOptions()
	opts.AcquireDelay = time.Second
	radio := sim.New(opts, suite.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := radio.AcquireControleeScope(ctx)
	suite.ErrorIs(err, context.DeadlineExceeded)
	suite.Less(time.Since(start), 500*time.Millisecond)
}

func (suite *RadioTestSuite) TestAcquire_ForcedVariant() {
	suite.radio.ReturnScopeVariant(uwb.RoleControlee)

	scope, err := suite.radio.AcquireControllerScope(context.Background())
	suite.Require().NoError(err)
	suite.ErrorIs(scope.Validate(uwb.RoleController), uwb.ErrRoleScopeMismatch)
}

func (suite *RadioTestSuite) TestOpenFeed_CountsAndCancel() {
	scope, err := suite.radio.AcquireControllerScope(context.Background())
	suite.Require().NoError(err)

	sub, err := suite.radio.OpenFeed(context.Background(), scope, suite.params(1234))
	suite.Require().NoError(err)
	suite.NotEmpty(sub.ID())
	suite.Equal(1, suite.radio.Opened())
	suite.Equal(1, suite.radio.Active())

	last, ok := suite.radio.LastParams()
	suite.True(ok)
	suite.Equal(int32(42), last.SessionID)
	suite.Equal(uwb.AddressFromShort(1234), suite.radio.LastFeed().Peer())

	sub.Cancel()
	sub.Cancel()

	suite.Equal(1, suite.radio.Canceled())
	suite.Equal(0, suite.radio.Active())
	suite.NoError(sub.Err())

	select {
	case <-sub.Done():
	default:
		suite.Fail("Done MUST be closed after Cancel")
	}
}

func (suite *RadioTestSuite) TestOpenFeed_Errors() {
	scope, err := suite.radio.AcquireControllerScope(context.Background())
	suite.Require().NoError(err)

	_, err = suite.radio.OpenFeed(context.Background(), nil, suite.params(1))
	suite.Error(err)

	noPeer := suite.params(1)
	noPeer.Peers = nil
	_, err = suite.radio.OpenFeed(context.Background(), scope, noPeer)
	suite.Error(err)

	rejected := errors.New("invalid preamble")
	suite.radio.FailNextOpen(rejected)
	_, err = suite.radio.OpenFeed(context.Background(), scope, suite.params(1))
	suite.ErrorIs(err, rejected)

	suite.Equal(0, suite.radio.Opened())
}

func (suite *RadioTestSuite) TestFeed_InjectFailAndEnd() {
	scope, err := suite.radio.AcquireControllerScope(context.Background())
	suite.Require().NoError(err)
	sub, err := suite.radio.OpenFeed(context.Background(), scope, suite.params(7))
	suite.Require().NoError(err)
	feed := sub.(*sim.Feed)

	suite.True(feed.Inject(uwb.PositionEvent(feed.Peer(), uwb.F32(1), nil, nil)))
	ev := <-sub.Events()
	suite.Equal(uwb.EventPosition, ev.Kind)

	failure := errors.New("transport lost")
	feed.Fail(failure)
	suite.ErrorIs(sub.Err(), failure)
	suite.False(feed.Canceled(), "failed feed MUST NOT count as canceled")
	suite.False(feed.Inject(uwb.OtherEvent("late")), "ended feed MUST reject events")

	feed.Cancel()
	suite.False(feed.Canceled())
}

func (suite *RadioTestSuite) TestOnOpenHook() {
	var opened []*sim.Feed
	suite.radio.SetOnOpen(func(f *sim.Feed) { opened = append(opened, f) })

	scope, err := suite.radio.AcquireControleeScope(context.Background())
	suite.Require().NoError(err)
	_, err = suite.radio.OpenFeed(context.Background(), scope, suite.params(2))
	suite.Require().NoError(err)

	suite.Len(opened, 1)
	suite.Equal(suite.radio.LastFeed(), opened[0])
}

func (suite *RadioTestSuite) TestGenerator_DrivesFeed() {
	scope, err := suite.radio.AcquireControllerScope(context.Background())
	suite.Require().NoError(err)
	sub, err := suite.radio.OpenFeed(context.Background(), scope, suite.params(9))
	suite.Require().NoError(err)
	feed := sub.(*sim.Feed)

	gen := sim.DefaultGenerator(2 * time.Millisecond)
	done := gen.Drive(context.Background(), feed)

	select {
	case ev := <-sub.Events():
		suite.Equal(uwb.EventPosition, ev.Kind)
		suite.Equal(uwb.AddressFromShort(9), ev.Peer)
	case <-time.After(time.Second):
		suite.Fail("generator MUST deliver events")
	}

	feed.Cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		suite.Fail("generator MUST stop when the feed ends")
	}
}

func (suite *RadioTestSuite) TestGenerator_Samples() {
	gen := sim.DefaultGenerator(100 * time.Millisecond)
	gen.DropoutEvery = 7
	peer := uwb.AddressFromShort(1)

	first := gen.Sample(0, peer)
	suite.Require().NotNil(first.Position)
	suite.NotNil(first.Position.Distance)
	suite.NotNil(first.Position.Azimuth)
	suite.InDelta(2.25, first.Position.Distance.Value, 0.001)

	azimuthOnly := gen.Sample(5, peer)
	suite.Nil(azimuthOnly.Position.Distance)
	suite.NotNil(azimuthOnly.Position.Azimuth)

	distanceOnly := gen.Sample(10, peer)
	suite.NotNil(distanceOnly.Position.Distance)
	suite.Nil(distanceOnly.Position.Azimuth)

	suite.Equal(uwb.EventPeerDisconnected, gen.Sample(7, peer).Kind)

	for n := 0; n < 200; n++ {
		ev := gen.Sample(n, peer)
		if ev.Position != nil && ev.Position.Distance != nil {
			suite.GreaterOrEqual(ev.Position.Distance.Value, float32(0.5-1e-4))
			suite.LessOrEqual(ev.Position.Distance.Value, float32(4.0+1e-4))
		}
	}
}

func TestRadioTestSuite(t *testing.T) {
	suite.Run(t, new(RadioTestSuite))
}
